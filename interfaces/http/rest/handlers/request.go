package handlers

import (
	"errors"
	"net/http"
	"strings"

	"filon/pkg/common"
	pkgerrors "filon/pkg/errors"
	"filon/pkg/utils"
)

// decodeRequest reads a JSON body into v and validates its struct tags
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := common.ParseJSONBody(w, r, v, common.DefaultMaxBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.NewValidationError("request body too large").
				WithDetail("limit", tooLarge.Limit)
		}
		return pkgerrors.NewValidationError("invalid request body").WithCause(err)
	}
	return utils.ValidateStruct(v)
}

// splitList reads a comma separated query parameter
func splitList(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
