package vault

import "testing"

func TestParseRef(t *testing.T) {
	path, key, err := ParseRef("vault:secret/launchpad/db#password")
	if err != nil || path != "secret/launchpad/db" || key != "password" {
		t.Fatalf("got (%q, %q, %v)", path, key, err)
	}

	for _, bad := range []string{
		"secret/launchpad/db#password", // no prefix
		"vault:secret/launchpad/db",    // no key
		"vault:secret/launchpad/db#",   // empty key
		"vault:#password",              // empty path
		"vault:secret#password",        // mount only
	} {
		if _, _, err := ParseRef(bad); err == nil {
			t.Errorf("ParseRef(%q) should fail", bad)
		}
	}
}

func TestSplitMount(t *testing.T) {
	m, rel := splitMount("secret/launchpad/db")
	if m != "secret" || rel != "launchpad/db" {
		t.Fatalf("got (%q, %q)", m, rel)
	}
}
