package protocol

import (
	"github.com/tidwall/sjson"
)

// ConnectInfo is the body of the CONNECT operation a client sends once it
// has read the server INFO.
type ConnectInfo struct {
	Verbose      bool
	Pedantic     bool
	TLSRequired  bool
	Name         string
	Lang         string
	Version      string
	Protocol     int
	Echo         bool
	Headers      bool
	NoResponders bool

	// Credentials are only sent when set.
	JWT   string
	Nkey  string
	Sig   string
	User  string
	Pass  string
	Token string
}

func (ci *ConnectInfo) MarshalJSON() ([]byte, error) {
	var err error
	out := []byte("{}")

	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, path, value)
	}

	setNonEmpty := func(path string, value string) {
		if value != "" {
			set(path, value)
		}
	}

	set("verbose", ci.Verbose)
	set("pedantic", ci.Pedantic)
	setNonEmpty("jwt", ci.JWT)
	setNonEmpty("nkey", ci.Nkey)
	setNonEmpty("sig", ci.Sig)
	setNonEmpty("user", ci.User)
	setNonEmpty("pass", ci.Pass)
	setNonEmpty("auth_token", ci.Token)
	set("tls_required", ci.TLSRequired)
	set("name", ci.Name)
	set("lang", ci.Lang)
	set("version", ci.Version)
	set("protocol", ci.Protocol)
	set("echo", ci.Echo)
	set("headers", ci.Headers)
	set("no_responders", ci.NoResponders)

	if err != nil {
		return nil, err
	}

	return out, nil
}

// ParseConnectInfo is the inverse of MarshalJSON. It is used by brokers and
// test harnesses that need to read what a client announced.
func ParseConnectInfo(data []byte) (*ConnectInfo, error) {
	r, err := parseJSONObject(data)
	if err != nil {
		return nil, err
	}

	return &ConnectInfo{
		Verbose:      r.Get("verbose").Bool(),
		Pedantic:     r.Get("pedantic").Bool(),
		TLSRequired:  r.Get("tls_required").Bool(),
		Name:         r.Get("name").String(),
		Lang:         r.Get("lang").String(),
		Version:      r.Get("version").String(),
		Protocol:     int(r.Get("protocol").Int()),
		Echo:         r.Get("echo").Bool(),
		Headers:      r.Get("headers").Bool(),
		NoResponders: r.Get("no_responders").Bool(),
		JWT:          r.Get("jwt").String(),
		Nkey:         r.Get("nkey").String(),
		Sig:          r.Get("sig").String(),
		User:         r.Get("user").String(),
		Pass:         r.Get("pass").String(),
		Token:        r.Get("auth_token").String(),
	}, nil
}
