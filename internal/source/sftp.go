package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"hrsync/internal/config"
	"hrsync/internal/hrsync"
)

// SFTPSource fetches exports from the HR vendor's SFTP server. The
// connection is opened lazily and reopened after a failed operation.
type SFTPSource struct {
	addr           string
	sshConfig      *ssh.ClientConfig
	connectTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	ssh    *ssh.Client
	client *sftp.Client
}

var _ hrsync.FileSource = (*SFTPSource)(nil)

// NewSFTPSource prepares authentication and host key verification. No
// network connection is made until the first operation.
func NewSFTPSource(cfg config.SourceConfig, connectTimeout time.Duration) (*SFTPSource, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("sftp source requires host to be set")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("sftp source requires user to be set")
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	return &SFTPSource{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		sshConfig: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         connectTimeout,
		},
		connectTimeout: connectTimeout,
	}, nil
}

func authMethods(cfg config.SourceConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if cfg.PrivateKeyPath != "" {
		pem, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading sftp private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && cfg.Password != "" {
			// The password doubles as the key passphrase.
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(cfg.Password))
		}
		if err != nil {
			return nil, fmt.Errorf("parsing sftp private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("sftp source requires a password or private_key_path")
	}
	return methods, nil
}

func hostKeyCallback(cfg config.SourceConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if cfg.KnownHostsPath == "" {
		return nil, fmt.Errorf("sftp source requires known_hosts_path (or insecure_ignore_host_key)")
	}
	cb, err := knownhosts.New(cfg.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("loading known hosts: %w", err)
	}
	return cb, nil
}

// connect returns the live client, dialing if needed. Caller holds s.mu.
func (s *SFTPSource) connect(ctx context.Context) (*sftp.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	dialer := net.Dialer{Timeout: s.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", s.addr, err)
	}
	if s.connectTimeout > 0 {
		conn.SetDeadline(time.Now().Add(s.connectTimeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, s.addr, s.sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", s.addr, err)
	}
	conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("starting sftp subsystem: %w", err)
	}

	s.conn, s.ssh, s.client = conn, sshClient, client
	return client, nil
}

// do runs fn against a live client. The context deadline is applied to the
// socket and cancellation aborts in-flight I/O; a failed call drops the
// connection so the next call redials.
func (s *SFTPSource) do(ctx context.Context, fn func(*sftp.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}

	conn := s.conn
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})

	err = fn(client)
	stop()
	conn.SetDeadline(time.Time{})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			s.closeLocked()
		}
	}
	return err
}

// ListFiles returns the regular files directly under dir.
func (s *SFTPSource) ListFiles(ctx context.Context, dir string) ([]hrsync.RemoteFile, error) {
	var files []hrsync.RemoteFile
	err := s.do(ctx, func(c *sftp.Client) error {
		entries, err := c.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.Mode().IsRegular() {
				continue
			}
			files = append(files, hrsync.RemoteFile{
				Name:       e.Name(),
				Path:       path.Join(dir, e.Name()),
				Size:       e.Size(),
				ModifiedAt: e.ModTime().UTC(),
			})
		}
		return nil
	})
	return files, err
}

// Download reads the whole remote file at p.
func (s *SFTPSource) Download(ctx context.Context, p string) ([]byte, error) {
	var buf bytes.Buffer
	err := s.do(ctx, func(c *sftp.Client) error {
		f, err := c.Open(p)
		if err != nil {
			return fmt.Errorf("opening %s: %w", p, err)
		}
		defer f.Close()
		if _, err := f.WriteTo(&buf); err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close drops the SSH connection, if any. The next call redials.
func (s *SFTPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SFTPSource) closeLocked() error {
	if s.client == nil {
		return nil
	}
	err := errors.Join(s.client.Close(), s.ssh.Close())
	s.conn, s.ssh, s.client = nil, nil, nil
	return err
}
