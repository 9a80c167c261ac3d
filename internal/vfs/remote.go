package vfs

import (
	"os"

	"vfm/internal/secret"
	"vfm/internal/sshconn"
	"vfm/internal/vfserr"
)

// CredentialSource resolves credentials for a remote path. Implementations
// may consult an in-memory cache, the OS keyring, or prompt the user.
type CredentialSource interface {
	Lookup(p Path) (sshconn.Credentials, error)
}

// StaticCredentials is a CredentialSource that always answers with the same
// secret, taking the username from the path when present.
type StaticCredentials sshconn.Credentials

func (c StaticCredentials) Lookup(p Path) (sshconn.Credentials, error) {
	creds := sshconn.Credentials(c)
	if p.User != "" {
		creds.Username = p.User
	}
	return creds, nil
}

// StoreCredentials resolves passwords from a secret.Store, keyed by the
// path's host and user.
type StoreCredentials struct {
	Store secret.Store
}

func (c StoreCredentials) Lookup(p Path) (sshconn.Credentials, error) {
	creds := sshconn.Credentials{Username: p.User}
	pass, found, err := c.Store.Get(p.Host, p.User)
	if err != nil {
		return creds, err
	}
	if found {
		creds.Password = pass
	}
	return creds, nil
}

// classifyRemote maps backend errors into the VFS taxonomy, recognizing the
// os-style not-found/permission errors the sftp and smb clients produce.
func classifyRemote(op, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		return vfserr.NotFound(op, path, err)
	case os.IsPermission(err):
		return vfserr.PermissionDenied(op, path, err)
	}
	return vfserr.Classify(op, path, err)
}
