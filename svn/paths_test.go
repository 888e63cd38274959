package svn

import "testing"

func TestIsChildPath(t *testing.T) {
	cases := []struct {
		path, base string
		want       bool
	}{
		{"/trunk", "/trunk", true},
		{"/trunk/a.txt", "/trunk", true},
		{"/trunk/sub/a.txt", "/trunk", true},
		{"/trunkx/a.txt", "/trunk", false},
		{"/branches/a", "/trunk", false},
		{"/trunk", "", true},
		{"/anything", "", true},
	}

	for _, c := range cases {
		if got := IsChildPath(c.path, c.base); got != c.want {
			t.Errorf("IsChildPath(%q, %q) = %v, want %v", c.path, c.base, got, c.want)
		}
	}
}

func TestPathOffset(t *testing.T) {
	cases := []struct {
		path, base string
		want       string
		under      bool
	}{
		{"/trunk/a.txt", "/trunk", "a.txt", true},
		{"/trunk/sub/a.txt", "/trunk", "sub/a.txt", true},
		{"/trunk", "/trunk", "", true},
		{"/branches/a", "/trunk", "", false},
		{"/trunk/a.txt", "", "trunk/a.txt", true},
	}

	for _, c := range cases {
		got, under := PathOffset(c.path, c.base)
		if got != c.want || under != c.under {
			t.Errorf("PathOffset(%q, %q) = (%q, %v), want (%q, %v)",
				c.path, c.base, got, under, c.want, c.under)
		}
	}
}

func TestJoinPath(t *testing.T) {
	cases := []struct {
		base, child string
		want        string
	}{
		{"http://svn/repo/trunk", "a.txt", "http://svn/repo/trunk/a.txt"},
		{"http://svn/repo/trunk/", "a.txt", "http://svn/repo/trunk/a.txt"},
		{"http://svn/repo/trunk", "", "http://svn/repo/trunk"},
		{"http://svn/repo", "/trunk/a.txt", "http://svn/repo/trunk/a.txt"},
	}

	for _, c := range cases {
		if got := JoinPath(c.base, c.child); got != c.want {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", c.base, c.child, got, c.want)
		}
	}
}
