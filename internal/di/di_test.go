package di

import "testing"

type counter struct{ n int }

func TestContainer_FactoryIsSingleton(t *testing.T) {
	c := NewContainer()
	tok := NewToken[*counter]("test:counter")

	builds := 0
	RegisterToken(c, tok, func(ServiceRegistry) *counter {
		builds++
		return &counter{n: builds}
	})

	a := GetToken(c, tok)
	b := GetToken(c, tok)
	if a != b {
		t.Fatal("expected the same instance on repeated gets")
	}
	if builds != 1 {
		t.Fatalf("factory ran %d times, want 1", builds)
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("base", 40)
	tok := NewToken[int]("sum")
	RegisterToken(c, tok, func(sr ServiceRegistry) int {
		return sr.Get("base").(int) + 2
	})

	if got := GetToken(c, tok); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if !c.Has("sum") || c.Has("missing") {
		t.Fatal("Has reported wrong registrations")
	}
}

func TestContainer_PanicsOnUnknownService(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewContainer().Get("nope")
}

func TestContainer_PanicsOnCycle(t *testing.T) {
	c := NewContainer()
	c.RegisterFactory("a", func(sr ServiceRegistry) any { return sr.Get("b") })
	c.RegisterFactory("b", func(sr ServiceRegistry) any { return sr.Get("a") })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on cycle")
		}
	}()
	c.Get("a")
}
