package node

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("fetch_api")
	var unk *ErrUnknownNodeType
	if !errors.As(err, &unk) {
		t.Fatalf("Get() error = %v, want *ErrUnknownNodeType", err)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	n := Func{
		ExecuteFn: func(ctx context.Context, input map[string]any, nctx *Context) Result {
			return Success(map[string]any{"ok": true})
		},
	}
	r.Register("noop", n)

	got, err := r.Get("noop")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	res := got.Execute(context.Background(), nil, &Context{})
	if !res.Success || res.Data["ok"] != true {
		t.Fatalf("Execute() = %+v", res)
	}
}

func TestFuncValidateDefaultsOK(t *testing.T) {
	f := Func{}
	if got := f.Validate(nil); !got.Valid {
		t.Fatalf("Validate() = %+v, want valid", got)
	}
}
