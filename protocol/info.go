package protocol

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrBadJSON = errors.New("nats: malformed JSON argument")

// ServerInfo is the body of the INFO operation.
type ServerInfo struct {
	ID           string
	Name         string
	Proto        int
	Version      string
	Host         string
	Port         int
	Headers      bool
	AuthRequired bool
	TLSRequired  bool
	MaxPayload   int64
	ClientID     uint64
	ClientIP     string
	Nonce        string
	Cluster      string
	ConnectURLs  []string
	LameDuckMode bool
}

func ParseServerInfo(data []byte) (*ServerInfo, error) {
	r, err := parseJSONObject(data)
	if err != nil {
		return nil, err
	}

	info := &ServerInfo{
		ID:           r.Get("server_id").String(),
		Name:         r.Get("server_name").String(),
		Proto:        int(r.Get("proto").Int()),
		Version:      r.Get("version").String(),
		Host:         r.Get("host").String(),
		Port:         int(r.Get("port").Int()),
		Headers:      r.Get("headers").Bool(),
		AuthRequired: r.Get("auth_required").Bool(),
		TLSRequired:  r.Get("tls_required").Bool(),
		MaxPayload:   r.Get("max_payload").Int(),
		ClientID:     r.Get("client_id").Uint(),
		ClientIP:     r.Get("client_ip").String(),
		Nonce:        r.Get("nonce").String(),
		Cluster:      r.Get("cluster").String(),
		LameDuckMode: r.Get("ldm").Bool(),
	}

	for _, u := range r.Get("connect_urls").Array() {
		info.ConnectURLs = append(info.ConnectURLs, u.String())
	}

	return info, nil
}

// MarshalJSON renders the INFO body the way a broker would send it.
func (si *ServerInfo) MarshalJSON() ([]byte, error) {
	var err error
	out := []byte("{}")

	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, path, value)
	}

	set("server_id", si.ID)
	set("server_name", si.Name)
	set("version", si.Version)
	set("proto", si.Proto)
	set("host", si.Host)
	set("port", si.Port)
	set("headers", si.Headers)
	set("auth_required", si.AuthRequired)
	set("tls_required", si.TLSRequired)
	set("max_payload", si.MaxPayload)
	set("client_id", si.ClientID)
	set("client_ip", si.ClientIP)

	if si.Nonce != "" {
		set("nonce", si.Nonce)
	}
	if si.Cluster != "" {
		set("cluster", si.Cluster)
	}
	if len(si.ConnectURLs) > 0 {
		set("connect_urls", si.ConnectURLs)
	}
	if si.LameDuckMode {
		set("ldm", true)
	}

	if err != nil {
		return nil, err
	}

	return out, nil
}

func parseJSONObject(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: '%s'", ErrBadJSON, data)
	}

	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: expected an object, got '%s'", ErrBadJSON, data)
	}

	return r, nil
}
