package resolver

import "strings"

// Title prefixes and name suffixes stripped during normalization.
var (
	nameTitles = map[string]bool{
		"mr": true, "mrs": true, "ms": true, "miss": true,
		"dr": true, "prof": true, "rev": true, "sir": true,
	}
	nameSuffixes = map[string]bool{
		"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
		"phd": true, "md": true, "esq": true,
	}
	// Legal suffixes stripped from organization names.
	orgLegalSuffixes = map[string]bool{
		"inc": true, "incorporated": true, "llc": true, "llp": true,
		"ltd": true, "limited": true, "corp": true, "corporation": true,
		"co": true, "company": true, "gmbh": true, "plc": true, "sa": true,
	}
)

// nicknames maps common short forms to canonical first names.
var nicknames = map[string]string{
	"bill": "william", "will": "william", "liam": "william",
	"bob": "robert", "rob": "robert", "bobby": "robert",
	"dick": "richard", "rick": "richard", "rich": "richard",
	"jim": "james", "jimmy": "james",
	"jack": "john", "johnny": "john",
	"jon": "jonathan",
	"mike": "michael", "mick": "michael",
	"tom": "thomas", "tommy": "thomas",
	"tony": "anthony",
	"ted": "edward", "ed": "edward", "eddie": "edward",
	"chuck": "charles", "charlie": "charles",
	"dan": "daniel", "danny": "daniel",
	"dave": "david",
	"steve": "steven",
	"chris": "christopher",
	"matt": "matthew",
	"sam": "samuel",
	"alex": "alexander",
	"nick": "nicholas",
	"andy": "andrew", "drew": "andrew",
	"joe": "joseph", "joey": "joseph",
	"greg": "gregory",
	"ben": "benjamin",
	"ken": "kenneth",
	"liz": "elizabeth", "beth": "elizabeth", "betty": "elizabeth",
	"kate": "katherine", "katie": "katherine", "kathy": "katherine",
	"peggy": "margaret", "maggie": "margaret", "meg": "margaret",
	"jen": "jennifer", "jenny": "jennifer",
	"sue": "susan", "susie": "susan",
	"patty": "patricia", "trish": "patricia", "pat": "patricia",
	"becky": "rebecca",
	"vicky": "victoria",
}

// canonicalFirstName resolves a first name through the nickname table.
func canonicalFirstName(name string) string {
	if full, ok := nicknames[name]; ok {
		return full
	}
	return name
}

// normalizeName lowercases a person name, strips punctuation, and drops
// title prefixes and generational/academic suffixes.
func normalizeName(name string) string {
	fields := strings.Fields(stripPunct(strings.ToLower(name)))
	out := fields[:0]
	for i, f := range fields {
		if i == 0 && nameTitles[f] {
			continue
		}
		if i == len(fields)-1 && len(out) > 0 && nameSuffixes[f] {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// normalizeOrgName lowercases an organization name, strips punctuation and
// drops trailing legal suffixes.
func normalizeOrgName(name string) string {
	fields := strings.Fields(stripPunct(strings.ToLower(name)))
	for len(fields) > 1 && orgLegalSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// stripPunct replaces punctuation with spaces so token boundaries survive.
func stripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// normalizePhone keeps digits only and strips a leading US country code.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// normalizeDomain reduces a website URL to its bare host.
func normalizeDomain(site string) string {
	s := strings.ToLower(strings.TrimSpace(site))
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// normalizeEmail lowercases and trims an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
