package httputil

import (
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCache(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	t.Run("MissBeforeSet", func(t *testing.T) {
		var v payload
		ok, err := c.Get("absent", &v)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Error("expected miss")
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		want := payload{Name: "mesh", Count: 5570}
		if err := c.Set("key", want); err != nil {
			t.Fatalf("Set: %v", err)
		}
		var got payload
		ok, err := c.Get("key", &got)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok || got != want {
			t.Errorf("Get = (%+v, %v), want (%+v, true)", got, ok, want)
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		a := c.Namespace("a:")
		b := c.Namespace("b:")

		if err := a.Set("shared", payload{Name: "from-a"}); err != nil {
			t.Fatalf("Set: %v", err)
		}
		var got payload
		if ok, _ := b.Get("shared", &got); ok {
			t.Error("namespaces must not share entries")
		}
		if ok, _ := a.Get("shared", &got); !ok || got.Name != "from-a" {
			t.Errorf("namespace a lost its entry: (%+v, %v)", got, ok)
		}
	})
}

func TestCacheExpiry(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Nanosecond)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if err := c.Set("key", payload{Name: "stale"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	var v payload
	ok, err := c.Get("key", &v)
	if ok {
		t.Error("expired entry served as hit")
	}
	if err != ErrExpired {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}
