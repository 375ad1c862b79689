package gateway

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/naka-gawa/tap-mssql/internal/config"
)

const sshDialTimeout = 30 * time.Second

// sshDialer satisfies mssql.Dialer by opening connections from the bastion.
type sshDialer struct {
	client *ssh.Client
}

func (d *sshDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.client.DialContext(ctx, network, addr)
}

func dialSSH(cfg *config.SSHTunnelConfig) (*ssh.Client, error) {
	clientCfg, err := sshClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup SSH connection to %s: %w", addr, err)
	}
	return client, nil
}

func sshClientConfig(cfg *config.SSHTunnelConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.PrivateKey != "" {
		var (
			signer ssh.Signer
			err    error
		)
		if cfg.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(cfg.PrivateKey), []byte(cfg.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.HostKey != "" {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(key)
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         sshDialTimeout,
	}, nil
}
