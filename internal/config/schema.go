package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// schemaMu guards the shared CUE context, which is not safe for
// concurrent use.
var (
	schemaMu  sync.Mutex
	schemaCtx *cue.Context
	schemaDef cue.Value
)

// schema returns the compiled #Config definition and the context it lives
// in. Values checked against it must be built in the same context.
// Called with schemaMu held.
func schema() (*cue.Context, cue.Value) {
	if schemaCtx == nil {
		schemaCtx = cuecontext.New()
		schemaDef = schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue")).
			LookupPath(cue.ParsePath("#Config"))
	}
	return schemaCtx, schemaDef
}

// Validate checks c against the embedded #Config schema.
// Returns a *ValidationError naming the first offending field.
func (c Config) Validate() error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, def := schema()
	if err := def.Err(); err != nil {
		return &ValidationError{Message: "schema: " + err.Error()}
	}

	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return toValidationError(err)
	}
	return nil
}

// toValidationError keeps the first CUE error and its field path.
func toValidationError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := errs[0]
	path := make([]string, 0, len(first.Path()))
	for _, p := range first.Path() {
		if strings.HasPrefix(p, "#") {
			continue
		}
		path = append(path, p)
	}

	format, args := first.Msg()
	return &ValidationError{
		Field:   strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}
