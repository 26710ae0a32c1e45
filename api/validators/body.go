package validators

import (
	"encoding/json"
	"io"
	"net/http"

	pkgcheckout "github.com/angelmondragon/neurocare-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

// DecodeJSONBody decodes a strict JSON body into dest and runs its validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	if err := DecodeJSON(r, dest); err != nil {
		return err
	}
	return pkgcheckout.Validate(dest)
}

// DecodeJSON decodes a strict JSON body without validating it, for inputs that are normalized
// before validation.
func DecodeJSON(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	return nil
}
