// internal/hostinfo/hostinfo_test.go
//
// Unit-tests for the Host-header classifier.
//
// Run: go test ./internal/hostinfo -v

package hostinfo

import "testing"

const baseDomain = "canopy.site"

func TestClassify_Shapes(t *testing.T) {
	cases := []struct {
		name    string
		host    string
		kind    Kind
		label   string
		local   bool
		custom  bool
	}{
		{"bare localhost", "localhost", KindLocalBare, "", true, false},
		{"loopback v4", "127.0.0.1:3000", KindLocalBare, "", true, false},
		{"loopback v6", "[::1]:3000", KindLocalBare, "", true, false},
		{"local subdomain", "acme.localhost", KindLocalSubdomain, "acme", true, false},
		{"lvh bare", "lvh.me", KindLocalBare, "", true, false},
		{"lvh subdomain", "foo.lvh.me", KindLocalSubdomain, "foo", true, false},
		{"lvh www", "www.lvh.me", KindLocalBare, "", true, false},
		{"base root", "canopy.site", KindBaseRoot, "", false, false},
		{"base root www", "www.canopy.site", KindBaseRoot, "", false, false},
		{"subdomain", "tenant.canopy.site", KindSubdomain, "tenant", false, false},
		{"subdomain www", "www.tenant.canopy.site", KindSubdomain, "tenant", false, false},
		{"subdomain with port", "tenant.canopy.site:8443", KindSubdomain, "tenant", false, false},
		{"custom domain", "customdomain.com", KindCustomDomain, "", false, true},
		{"custom www", "www.customdomain.com", KindCustomDomain, "", false, true},
		{"trailing dot", "tenant.canopy.site.", KindSubdomain, "tenant", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.host, baseDomain)
			if got.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", got.Kind, tc.kind)
			}
			if got.Subdomain != tc.label {
				t.Fatalf("subdomain = %q, want %q", got.Subdomain, tc.label)
			}
			if got.IsLocal != tc.local {
				t.Fatalf("isLocal = %v, want %v", got.IsLocal, tc.local)
			}
			if got.IsCustomDomain != tc.custom {
				t.Fatalf("isCustomDomain = %v, want %v", got.IsCustomDomain, tc.custom)
			}
		})
	}
}

func TestClassify_WWWIdempotent(t *testing.T) {
	a := Classify("tenant.canopy.site", baseDomain)
	b := Classify("www.tenant.canopy.site", baseDomain)
	if a.Subdomain != b.Subdomain || a.Kind != b.Kind {
		t.Fatalf("www stripping not idempotent: %+v vs %+v", a, b)
	}
}

func TestToggleWWW(t *testing.T) {
	if got := ToggleWWW("customdomain.com"); got != "www.customdomain.com" {
		t.Fatalf("ToggleWWW add: got %q", got)
	}
	if got := ToggleWWW("www.customdomain.com"); got != "customdomain.com" {
		t.Fatalf("ToggleWWW strip: got %q", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("WWW.Tenant.Canopy.Site:443."); got != "www.tenant.canopy.site" {
		t.Fatalf("Normalize: got %q", got)
	}
}
