package vfs

import (
	"errors"
	"strconv"
	"strings"
)

// Parsed is the normalized view of an input path. Password is carried
// separately so it never ends up inside a Path (paths are cache keys and
// display strings).
type Parsed struct {
	Path     Path
	Password string
	Raw      string
}

var errMalformedURL = errors.New("malformed remote url")

// Parse maps user input to a Path. Accepted forms:
//
//	/local/dir
//	/data/photos.zip!/album
//	sftp://[user[:pass]@]host[:port]/path
//	ftp://[user[:pass]@]host[:port]/path
//	smb://host/share/path
func Parse(input string) (Parsed, error) {
	raw := strings.TrimSpace(input)
	lower := strings.ToLower(raw)

	switch {
	case strings.HasPrefix(lower, "sftp://"):
		return parseRemoteURL(raw, raw[len("sftp://"):], SchemeSftp, 22)
	case strings.HasPrefix(lower, "ftp://"):
		return parseRemoteURL(raw, raw[len("ftp://"):], SchemeFtp, 21)
	case strings.HasPrefix(lower, "smb://"):
		return parseSmbURL(raw, raw[len("smb://"):])
	}

	if archive, internal, ok := splitArchive(raw); ok {
		return Parsed{Path: Archive(archive, internal), Raw: input}, nil
	}
	return Parsed{Path: Local(raw), Raw: input}, nil
}

// splitArchive detects the "archive!/" separator, e.g. /a/b.zip!/docs/x.
func splitArchive(p string) (archive, internal string, ok bool) {
	idx := strings.Index(p, "!/")
	if idx <= 0 {
		return "", "", false
	}
	return p[:idx], strings.Trim(p[idx+1:], "/"), true
}

func parseRemoteURL(raw, rest string, scheme Scheme, defaultPort int) (Parsed, error) {
	user, pass, hostAndPath := splitUserInfo(rest)
	host, port, remotePath, err := splitHostPath(hostAndPath, defaultPort)
	if err != nil {
		return Parsed{}, err
	}
	var p Path
	if scheme == SchemeSftp {
		p = Sftp(host, port, user, remotePath)
	} else {
		p = Ftp(host, port, user, remotePath)
	}
	return Parsed{Path: p, Password: pass, Raw: raw}, nil
}

func parseSmbURL(raw, rest string) (Parsed, error) {
	user, pass, hostAndPath := splitUserInfo(rest)
	parts := strings.SplitN(hostAndPath, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Parsed{}, errMalformedURL
	}
	remotePath := "/"
	if len(parts) == 3 && parts[2] != "" {
		remotePath = "/" + strings.Trim(parts[2], "/")
	}
	p := Smb(parts[0], parts[1], remotePath)
	p.User = user
	return Parsed{Path: p, Password: pass, Raw: raw}, nil
}

func splitUserInfo(s string) (user, pass, rest string) {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return "", "", s
	}
	cred := s[:at]
	rest = s[at+1:]
	if colon := strings.Index(cred, ":"); colon >= 0 {
		return cred[:colon], cred[colon+1:], rest
	}
	return cred, "", rest
}

func splitHostPath(s string, defaultPort int) (host string, port int, remotePath string, err error) {
	remotePath = "/"
	if slash := strings.Index(s, "/"); slash >= 0 {
		remotePath = s[slash:]
		s = s[:slash]
	}
	if s == "" {
		return "", 0, "", errMalformedURL
	}
	port = defaultPort
	if colon := strings.LastIndex(s, ":"); colon >= 0 {
		p, perr := strconv.Atoi(s[colon+1:])
		if perr != nil || p <= 0 || p > 65535 {
			return "", 0, "", errMalformedURL
		}
		port = p
		s = s[:colon]
	}
	return s, port, remotePath, nil
}

// IsArchiveFile reports whether a file name looks like a browsable archive.
func IsArchiveFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tbz2", ".tar.xz", ".7z", ".rar"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
