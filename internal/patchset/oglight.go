// Package patchset holds the ordered descriptor data that adapts the OGLight
// userscript to the OGame Ninja environment, and a loader for external
// descriptor overlays. The data lives here; the generic engine lives in
// internal/patch.
package patchset

import "github.com/cellmaster/oglpatch/internal/patch"

// uuidPolyfill replaces crypto.randomUUID(), which is unavailable in some of
// the embedded browser builds Ninja runs on.
const uuidPolyfill = `'xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx'.replace(/[xy]/g, function(c) { var r = Math.random() * 16 | 0, v = c == 'x' ? r : (r & 0x3 | 0x8); return v.toString(16); })`

// envInjection is appended to the userscript header. Every later rewrite that
// references UNIVERSE, PROTOCOL, HOST, PLAYER_ID, universeNum or lang depends
// on this block having run first.
const envInjection = `// ==/UserScript==

	// OGLight {{version}} adapted for the OGame Ninja browser environment
	const urlMatch = /browser\/html\/s(\d+)-(\w+)/.exec(window.location.href);
	if(!urlMatch) { console.error('[OGLight Ninja] Invalid URL - expected format: browser/html/sXXX-xx'); throw new Error('Invalid OGame Ninja URL format'); }
	const universeNum = urlMatch[1];
	const lang = urlMatch[2];
	const UNIVERSE = "s" + universeNum + "-" + lang;
	const PROTOCOL = window.location.protocol;
	const HOST = window.location.host;
	const PLAYER_ID = document.querySelector("meta[name=ogame-player-id]").content;
	const localStoragePrefix = UNIVERSE + "-" + PLAYER_ID + "-";
`

// sessionBlockBegin/End delimit the cookie-based multi-session logic in the
// upstream script; the whole region is rewritten as one span.
const (
	sessionBlockBegin = `// get the account ID in cookies`
	sessionBlockEnd   = `const accountID = cookieAccounts[cookieAccounts.length-1].replace(/\D/g, '');`
)

const sessionBlockNinja = `// get the account ID from meta tag (OGame Ninja adaptation)
        const accountMeta = document.querySelector('head meta[name="ogame-player-id"]');

        // validate session exists (adapted for OGame Ninja)
        if(!accountMeta || !accountMeta.content)
        {
            console.error('[OGLight Ninja] No player ID found in meta tag - session may be invalid');
            alert('Session error: Unable to retrieve player ID. Please refresh the page.');
            return;
        }

        const accountID = accountMeta.getAttribute('content').replace(/\D/g, '');

        // additional validation
        if(!accountID || accountID === '0')
        {
            console.error('[OGLight Ninja] Invalid player ID:', accountID);
            alert('Session error: Invalid player ID detected. Please refresh the page.');
            return;
        }`

const legacyDBOld = `        // fix beta old DB
        if(!GM_getValue(this.DBName) && GM_getValue(window.location.host))
        {
            GM_setValue(this.DBName, GM_getValue(window.location.host));
            GM_deleteValue(window.location.host);
            window.location.reload();
        }`

const legacyDBNinja = `        // fix beta old DB - ADAPTED for OGame Ninja
        const oldHost = document.querySelector('meta[name="ogame-universe"]').getAttribute('content');
        if(!GM_getValue(this.DBName) && GM_getValue(oldHost))
        {
            GM_setValue(this.DBName, GM_getValue(oldHost));
            GM_deleteValue(oldHost);
            window.location.reload();
        }`

// globalStorageKeys were stored unprefixed upstream and collide between
// accounts sharing one Ninja profile. Counts vary by upstream build, so these
// sweeps run unbounded (zero occurrences warns).
var globalStorageKeys = []string{
	"ogl-redirect",
	"ogl_minipics",
	"ogl_menulayout",
	"ogl_colorblind",
	"ogl_sidepanelleft",
}

func exact(label, match, replace string, n int) patch.Descriptor {
	return patch.Descriptor{
		Label:   label,
		Kind:    patch.KindLiteral,
		Match:   match,
		Replace: replace,
		Policy:  patch.PolicyExact,
		Expect:  n,
	}
}

func atLeastOne(label, match, replace string) patch.Descriptor {
	return patch.Descriptor{
		Label:   label,
		Kind:    patch.KindLiteral,
		Match:   match,
		Replace: replace,
		Policy:  patch.PolicyAtLeastOne,
	}
}

// Builtin returns the ordered OGLight -> OGame Ninja descriptor set. Order
// matters: the environment injection must precede every rewrite referencing
// the injected variables, and the specific URL fixes must precede the generic
// game-URL conversion that would otherwise swallow their match text.
func Builtin() []patch.Descriptor {
	set := []patch.Descriptor{
		{
			Label:    "probe upstream version",
			Kind:     patch.KindRegex,
			Match:    `(?m)^// @version[ \t]+(\S+)[ \t]*$`,
			Replace:  "$0",
			Policy:   patch.PolicyExact,
			Expect:   1,
			Captures: []string{"version"},
		},
		exact("script name",
			"@name            OGLight",
			"@name            OGLight Ninja (CellMaster's Patcher)", 1),
		exact("@match pattern",
			"// @match           https://*.ogame.gameforge.com/game/*\n",
			"// @match           *://*/bots/*/browser/html/*?page=*\n", 1),
		exact("remove downloadURL",
			"// @downloadURL https://update.greasyfork.org/scripts/514909/OGLight.user.js\n",
			"", 1),
		exact("remove updateURL",
			"// @updateURL https://update.greasyfork.org/scripts/514909/OGLight.meta.js\n",
			"", 1),
		exact("inject environment variables",
			"// ==/UserScript==",
			envInjection, 1),
		atLeastOne("team key per universe (get)",
			"localStorage.getItem('ogl-ptreTK')",
			"localStorage.getItem(UNIVERSE+'-ogl-ptreTK')"),
		atLeastOne("team key per universe (set)",
			"localStorage.setItem('ogl-ptreTK',",
			"localStorage.setItem(UNIVERSE+'-ogl-ptreTK',"),
		exact("server id via meta tag",
			`this.server.id = window.location.host.replace(/\D/g,'');`,
			`this.server.id=document.querySelector('head meta[name="ogame-universe"]').getAttribute('content').replace(/\D/g,'');`, 1),
		exact("lang via URL variable",
			`this.account.lang = /oglocale=([a-z]+);/.exec(document.cookie)[1];`,
			`this.account.lang=lang;`, 1),
		exact("uuid polyfill (array init)",
			`let uuid = [crypto.randomUUID(), 0];`,
			`let uuid = ['xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx'.replace(/[xy]/g, function(c) {
    var r = Math.random() * 16 | 0, v = c == 'x' ? r : (r & 0x3 | 0x8);
    return v.toString(16);
}), 0];`, 1),
		atLeastOne("uuid polyfill (item.uid)",
			`item.uid = crypto.randomUUID();`,
			"item.uid = "+uuidPolyfill+";"),
		exact("playerData.xml API URL",
			"url:`https://${window.location.host}/api/playerData.xml?id=${player.uid}`,",
			"url:`${PROTOCOL}//${HOST}/api/s${universeNum}/${lang}/playerData.xml?id=${player.uid}`,", 1),
		exact("serverData.xml API URL",
			"url:`https://${window.location.host}/api/serverData.xml`,",
			"url:`${PROTOCOL}//${HOST}/api/s${universeNum}/${lang}/serverData.xml`,", 1),
		exact("players.xml API URL",
			"return fetch(`https://${window.location.host}/api/players.xml`,",
			"return fetch(`${PROTOCOL}//${HOST}/api/s${universeNum}/${lang}/players.xml`,", 1),
		exact("player highscore link",
			`${player.name} <a href="https://${window.location.host}/game/index.php?page=highscore`,
			`${player.name} <a href="${PROTOCOL}//${HOST}${window.location.pathname}?page=highscore`, 1),
		exact("message detail URL",
			"href:`https://${window.location.host}/game/index.php?page=componentOnly&component=messagedetails&messageId=${message.id}`",
			"href:`${PROTOCOL}//${HOST}${window.location.pathname}?page=componentOnly&component=messagedetails&messageId=${message.id}`", 1),
		atLeastOne("generic game URLs",
			"https://${window.location.host}/game/index.php",
			"${PROTOCOL}//${HOST}${window.location.pathname}"),
		{
			Label:   "multi-session via meta tag",
			Kind:    patch.KindSpan,
			Match:   sessionBlockBegin,
			SpanEnd: sessionBlockEnd,
			Replace: sessionBlockNinja,
			Policy:  patch.PolicyExact,
			Expect:  1,
		},
		exact("DBName per universe",
			"this.DBName = `${accountID}-${window.location.host.split('.')[0]}`;",
			"this.DBName = `${accountID}-${UNIVERSE}`;", 1),
		exact("AZERTY galaxyUp",
			`galaxyUp: window.location.host.split(/[-.]/)[1] == 'fr' ? 'z' : 'w',`,
			`galaxyUp: lang == 'fr' ? 'z' : 'w',`, 1),
		exact("AZERTY galaxyLeft",
			`galaxyLeft: window.location.host.split(/[-.]/)[1] == 'fr' ? 'q' : 'a',`,
			`galaxyLeft: lang == 'fr' ? 'q' : 'a',`, 1),
		exact("legacy DB migration",
			legacyDBOld,
			legacyDBNinja, 1),
	}

	for _, key := range globalStorageKeys {
		set = append(set,
			patch.Descriptor{
				Label:   "prefix localStorage " + key + " (get)",
				Kind:    patch.KindLiteral,
				Match:   "localStorage.getItem('" + key + "')",
				Replace: "localStorage.getItem(UNIVERSE+'-" + key + "')",
				Policy:  patch.PolicyUnbounded,
			},
			patch.Descriptor{
				Label:   "prefix localStorage " + key + " (set)",
				Kind:    patch.KindLiteral,
				Match:   "localStorage.setItem('" + key + "',",
				Replace: "localStorage.setItem(UNIVERSE+'-" + key + "',",
				Policy:  patch.PolicyUnbounded,
			},
		)
	}

	for i := range set {
		set[i].Ordinal = i + 1
	}
	return set
}
