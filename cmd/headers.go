package cmd

import (
	"fmt"
	"strings"

	"github.com/luma/herald/client"
)

// parseHeaders turns "Key:Value" flags into a message header.
func parseHeaders(raw []string) (client.Header, error) {
	h := client.Header{}

	for _, kv := range raw {
		i := strings.IndexByte(kv, ':')
		if i <= 0 {
			return nil, fmt.Errorf("invalid header %q, expected Key:Value", kv)
		}

		h.Add(strings.TrimSpace(kv[:i]), strings.TrimSpace(kv[i+1:]))
	}

	return h, nil
}
