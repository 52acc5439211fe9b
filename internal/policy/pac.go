package policy

import (
	"encoding/json"
	"strings"
)

const directPAC = `function FindProxyForURL(url, host) {
  return "DIRECT";
}
`

// renderPAC emits a FindProxyForURL that mirrors SuffixSet.Match. Domains are
// embedded through encoding/json, which escapes quotes, backslashes and
// '<', '>', '&', U+2028 and U+2029, so the literal is always valid
// JavaScript. proxyHost and proxyPort must already be sanitized.
func renderPAC(domains []string, proxyHost, proxyPort string) string {
	set := make(map[string]int, len(domains))
	for _, d := range domains {
		set[d] = 1
	}
	// map keys are emitted sorted, which keeps the script stable across runs
	literal, err := json.Marshal(set)
	if err != nil {
		return directPAC
	}
	target, _ := json.Marshal("PROXY " + proxyHost + ":" + proxyPort)

	var b strings.Builder
	b.Grow(len(literal) + 512)
	b.WriteString("var domains = ")
	b.Write(literal)
	b.WriteString(";\n")
	b.WriteString("var proxy = ")
	b.Write(target)
	b.WriteString(";\n\n")
	b.WriteString(`function FindProxyForURL(url, host) {
  var h = String(host).toLowerCase();
  if (h.charAt(h.length - 1) === ".") {
    h = h.substring(0, h.length - 1);
  }
  while (h) {
    if (Object.prototype.hasOwnProperty.call(domains, h)) {
      return proxy;
    }
    var i = h.indexOf(".");
    if (i < 0) {
      break;
    }
    h = h.substring(i + 1);
  }
  return "DIRECT";
}
`)
	return b.String()
}
