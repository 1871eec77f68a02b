package client_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/asynchttp/client"
)

func TestQueryParams_Encode(t *testing.T) {
	tests := []struct {
		name string
		q    client.QueryParams
		want string
	}{
		{"empty", client.QueryParams{}, ""},
		{"single", client.NewQueryParams("a", "1"), "a=1"},
		{"ordered duplicates", client.NewQueryParams("b", "2", "a", "1", "b", "3"), "b=2&a=1&b=3"},
		{"space is %20", client.NewQueryParams("q", "hello world"), "q=hello%20world"},
		{"reserved escaped", client.NewQueryParams("k&=", "v/?#"), "k%26%3D=v%2F%3F%23"},
		{"empty key bare value", client.NewQueryParams("", "flag"), "flag"},
		{"empty value bare key", client.NewQueryParams("flag", ""), "flag"},
		{"unicode", client.NewQueryParams("name", "gö"), "name=g%C3%B6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Encode(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryParams_EncodeForm(t *testing.T) {
	q := client.NewQueryParams("", "skipped", "a", "", "b", "x y")

	if got, want := q.EncodeForm(), "a=&b=x%20y"; got != want {
		t.Errorf("EncodeForm() = %q, want %q", got, want)
	}
}

func TestQueryParams_AppendTo(t *testing.T) {
	q := client.NewQueryParams("a", "1")

	tests := map[string]string{
		"http://host/path":     "http://host/path?a=1",
		"http://host/path?x=2": "http://host/path?x=2&a=1",
		"http://host/path?":    "http://host/path?&a=1",
	}
	for in, want := range tests {
		if got := q.AppendTo(in); got != want {
			t.Errorf("AppendTo(%q) = %q, want %q", in, got, want)
		}
	}

	if got := (client.QueryParams{}).AppendTo("http://host"); got != "http://host" {
		t.Errorf("empty params changed url: %q", got)
	}
}

func TestQueryParams_CloneIndependent(t *testing.T) {
	q := client.NewQueryParams("a", "1")
	c := q.Clone()
	c.Add("b", "2")

	if q.Len() != 1 || c.Len() != 2 {
		t.Errorf("len = %d/%d, want 1/2", q.Len(), c.Len())
	}
}

func TestFields_SetReplaces(t *testing.T) {
	var f client.Fields
	f.Set("a", "1")
	f.Set("b", "2")
	f.Set("a", "3")

	type kv struct{ K, V string }
	var got []kv
	for k, v := range f.All() {
		got = append(got, kv{k, v})
	}

	want := []kv{{"a", "3"}, {"b", "2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}
