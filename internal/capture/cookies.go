package capture

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cookie is one entry of the serialized cookie array carried by requests,
// e.g. [{"name":"session","value":"abc","domain":".example.com"}].
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	URL      string  `json:"url,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
}

// ParseCookies decodes cookie data. Both a JSON array and a single JSON
// object are accepted; blank input yields no cookies.
func ParseCookies(data string) ([]Cookie, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	var cookies []Cookie
	if strings.HasPrefix(data, "{") {
		var single Cookie
		if err := json.Unmarshal([]byte(data), &single); err != nil {
			return nil, fmt.Errorf("parse cookie data: %w", err)
		}
		cookies = []Cookie{single}
	} else if err := json.Unmarshal([]byte(data), &cookies); err != nil {
		return nil, fmt.Errorf("parse cookie data: %w", err)
	}
	for i, c := range cookies {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("parse cookie data: cookie %d has no name", i)
		}
	}
	return cookies, nil
}
