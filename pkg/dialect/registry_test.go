package dialect

import (
	"errors"
	"log/slog"
	"testing"
)

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Resolve(Tag("oracle"))
	if !errors.Is(err, ErrUnsupportedDialect) {
		t.Fatalf("expected ErrUnsupportedDialect, got %v", err)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(TagPostgres,
		func(ConnConfig, *slog.Logger) Adapter { called = true; return nil },
		func() Synthesizer { return nil },
	)

	af, sf, err := r.Resolve(TagPostgres)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if af == nil || sf == nil {
		t.Fatalf("expected both factories")
	}
	af(ConnConfig{}, nil)
	if !called {
		t.Fatalf("adapter factory not invoked")
	}

	if tags := r.Tags(); len(tags) != 1 || tags[0] != TagPostgres {
		t.Fatalf("tags = %v", tags)
	}
}

func TestRegistryReRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(TagMySQL, nil, nil)
	marker := false
	r.Register(TagMySQL,
		func(ConnConfig, *slog.Logger) Adapter { marker = true; return nil },
		func() Synthesizer { return nil },
	)

	af, _, err := r.Resolve(TagMySQL)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	af(ConnConfig{}, nil)
	if !marker {
		t.Fatalf("later registration did not replace earlier one")
	}
}
