package patchset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cellmaster/oglpatch/internal/patch"
)

func TestBuiltinValidates(t *testing.T) {
	t.Parallel()

	set := Builtin()
	if err := patch.ValidateSet(set); err != nil {
		t.Fatalf("builtin set does not validate: %v", err)
	}
	if len(set) == 0 {
		t.Fatal("builtin set is empty")
	}
	for i := range set {
		if set[i].Ordinal != i+1 {
			t.Errorf("descriptor %d: ordinal %d", i, set[i].Ordinal)
		}
	}
}

func TestBuiltinOrdering(t *testing.T) {
	t.Parallel()

	set := Builtin()
	pos := func(label string) int {
		for i := range set {
			if set[i].Label == label {
				return i
			}
		}
		t.Fatalf("descriptor %q not found", label)
		return -1
	}

	// The environment injection must precede everything that references the
	// injected variables, and the specific URL fixes must precede the
	// generic game-URL conversion.
	if pos("probe upstream version") > pos("inject environment variables") {
		t.Error("version probe must run before the injection that consumes it")
	}
	inject := pos("inject environment variables")
	for _, label := range []string{
		"team key per universe (get)",
		"playerData.xml API URL",
		"DBName per universe",
	} {
		if pos(label) < inject {
			t.Errorf("%q ordered before the environment injection", label)
		}
	}
	generic := pos("generic game URLs")
	for _, label := range []string{"player highscore link", "message detail URL"} {
		if pos(label) > generic {
			t.Errorf("%q must run before the generic game URL conversion", label)
		}
	}
}

func TestBuiltinAgainstSyntheticScript(t *testing.T) {
	t.Parallel()

	// A miniature document containing one occurrence of everything the
	// exact-count descriptors target, in upstream layout.
	source := strings.Join([]string{
		"// ==UserScript==",
		"// @name            OGLight",
		"// @version         5.3.3",
		"// @match           https://*.ogame.gameforge.com/game/*",
		"// @downloadURL https://update.greasyfork.org/scripts/514909/OGLight.user.js",
		"// @updateURL https://update.greasyfork.org/scripts/514909/OGLight.meta.js",
		"// ==/UserScript==",
		"localStorage.getItem('ogl-ptreTK')",
		"localStorage.setItem('ogl-ptreTK', value)",
		`this.server.id = window.location.host.replace(/\D/g,'');`,
		"this.account.lang = /oglocale=([a-z]+);/.exec(document.cookie)[1];",
		"let uuid = [crypto.randomUUID(), 0];",
		"item.uid = crypto.randomUUID();",
		"url:`https://${window.location.host}/api/playerData.xml?id=${player.uid}`,",
		"url:`https://${window.location.host}/api/serverData.xml`,",
		"return fetch(`https://${window.location.host}/api/players.xml`,",
		`${player.name} <a href="https://${window.location.host}/game/index.php?page=highscore`,
		"href:`https://${window.location.host}/game/index.php?page=componentOnly&component=messagedetails&messageId=${message.id}`",
		"location.href = 'https://${window.location.host}/game/index.php?page=ingame';",
		"// get the account ID in cookies",
		"const cookieAccounts = document.cookie.split(';');",
		`const accountID = cookieAccounts[cookieAccounts.length-1].replace(/\D/g, '');`,
		"this.DBName = `${accountID}-${window.location.host.split('.')[0]}`;",
		"galaxyUp: window.location.host.split(/[-.]/)[1] == 'fr' ? 'z' : 'w',",
		"galaxyLeft: window.location.host.split(/[-.]/)[1] == 'fr' ? 'q' : 'a',",
		legacyDBOld,
		"localStorage.getItem('ogl-redirect')",
	}, "\n")

	final, report, err := patch.Apply(source, Builtin())
	if err != nil {
		t.Fatalf("apply failed: %v\nreport: %+v", err, report.Failed())
	}
	if !report.OK() {
		t.Fatalf("aggregate flag false: %+v", report.Failed())
	}

	for _, want := range []string{
		"OGLight Ninja (CellMaster's Patcher)",
		"*://*/bots/*/browser/html/*?page=*",
		"// OGLight 5.3.3 adapted for the OGame Ninja browser environment",
		"localStorage.getItem(UNIVERSE+'-ogl-ptreTK')",
		"this.account.lang=lang;",
		"${PROTOCOL}//${HOST}/api/s${universeNum}/${lang}/playerData.xml",
		"${PROTOCOL}//${HOST}${window.location.pathname}?page=ingame",
		"get the account ID from meta tag (OGame Ninja adaptation)",
		"this.DBName = `${accountID}-${UNIVERSE}`;",
		"galaxyUp: lang == 'fr' ? 'z' : 'w',",
		"GM_getValue(oldHost)",
		"localStorage.getItem(UNIVERSE+'-ogl-redirect')",
	} {
		if !strings.Contains(final, want) {
			t.Errorf("patched output missing %q", want)
		}
	}
	for _, gone := range []string{
		"@downloadURL",
		"@updateURL",
		"crypto.randomUUID()",
		"https://${window.location.host}/game/index.php",
		"cookieAccounts[cookieAccounts.length-1]",
	} {
		if strings.Contains(final, gone) {
			t.Errorf("patched output still contains %q", gone)
		}
	}

	// Keys absent from this miniature document surface as warnings, not
	// failures.
	if len(report.Warnings()) == 0 {
		t.Error("expected warnings for absent optional localStorage keys")
	}
}

func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patchset.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    int
		wantErr string
	}{
		{
			name: "valid overlay",
			content: `{
				"schema": "oglpatch/patchset",
				"version": 1,
				"patches": [
					{"ordinal": 1, "label": "demo", "kind": "literal", "match": "a", "replace": "b", "policy": "exact", "expect": 1}
				]
			}`,
			want: 1,
		},
		{
			name:    "not json",
			content: "{nope",
			wantErr: "parse patchset",
		},
		{
			name:    "wrong schema id",
			content: `{"schema": "other/thing", "version": 1, "patches": []}`,
			wantErr: "does not match schema",
		},
		{
			name:    "missing required fields",
			content: `{"schema": "oglpatch/patchset", "version": 1, "patches": [{"label": "x"}]}`,
			wantErr: "does not match schema",
		},
		{
			name:    "unknown property rejected",
			content: `{"schema": "oglpatch/patchset", "version": 1, "patches": [], "extra": true}`,
			wantErr: "does not match schema",
		},
		{
			name:    "unsupported version",
			content: `{"schema": "oglpatch/patchset", "version": 2, "patches": []}`,
			wantErr: "unsupported version",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			set, err := Load(writeOverlay(t, tc.content))
			if tc.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tc.wantErr)
				}
				if !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error: got %q want substring %q", err.Error(), tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(set) != tc.want {
				t.Errorf("got %d descriptors, want %d", len(set), tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil || !strings.Contains(err.Error(), "read patchset") {
		t.Fatalf("error: got %v", err)
	}
}
