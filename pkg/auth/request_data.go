package auth

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"fbscraper/pkg/errors"
)

// Form fields a request must carry to be accepted by the messaging endpoints
var requiredFormFields = []string{"__user", "__a", "__dyn", "__req", "fb_dtsg", "__rev"}

// RequestData is the session material copied from a logged-in browser: the
// cookie header and the form fields sent with every POST.
type RequestData struct {
	Cookie string
	Form   url.Values
}

// ParseRequestData extracts the session material from "key: value" lines as
// shown by a browser's request inspector. Unrelated lines are ignored.
func ParseRequestData(raw string) (*RequestData, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if _, seen := fields[key]; !seen {
			fields[key] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCredentials, "failed to read request data", err)
	}

	var missing []string
	data := &RequestData{Cookie: fields["cookie"], Form: url.Values{}}
	if data.Cookie == "" {
		missing = append(missing, "cookie")
	}
	for _, name := range requiredFormFields {
		v := fields[strings.ToLower(name)]
		if v == "" {
			missing = append(missing, name)
			continue
		}
		data.Form.Set(name, v)
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrorTypeCredentials,
			fmt.Sprintf("request data is missing %s", strings.Join(missing, ", ")))
	}
	return data, nil
}

// UserID returns the numeric id of the logged-in account
func (r *RequestData) UserID() string {
	return r.Form.Get("__user")
}

// Headers returns the headers carrying the session
func (r *RequestData) Headers() map[string]string {
	return map[string]string{"Cookie": r.Cookie}
}
