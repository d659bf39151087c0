package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"contentaudit/internal/domain"
)

// pathParam binds a simple-style path segment declared in api/openapi.yaml.
func pathParam(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", domain.Invalid(name, err.Error())
	}
	return v, nil
}

// queryParam binds one form-style query parameter into dest, a pointer field
// of a generated *Params struct.
func queryParam(r *http.Request, name string, required bool, dest any) error {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		return domain.Invalid(name, err.Error())
	}
	return nil
}
