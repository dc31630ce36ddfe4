package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

// flagQuery accepts "1" and "true" (any case) as set.
func flagQuery(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

func intQuery(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
