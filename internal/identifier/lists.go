package identifier

// disposableDomains lists throwaway-email providers rejected at signup.
// Seeded from the usual public blocklists; extend as abuse reports come in.
var disposableDomains = map[string]bool{
	"10minutemail.com":  true,
	"dispostable.com":   true,
	"fakeinbox.com":     true,
	"getnada.com":       true,
	"guerrillamail.com": true,
	"guerrillamail.net": true,
	"mailinator.com":    true,
	"maildrop.cc":       true,
	"sharklasers.com":   true,
	"temp-mail.org":     true,
	"tempmail.dev":      true,
	"throwawaymail.com": true,
	"trashmail.com":     true,
	"yopmail.com":       true,
}

// validTLDs is a plausibility list, not an IANA mirror. It covers the TLDs
// seen in real traffic; anything else is treated as a typo.
var validTLDs = map[string]bool{
	"com": true, "net": true, "org": true, "edu": true, "gov": true,
	"mil": true, "int": true, "io": true, "co": true, "ai": true,
	"app": true, "dev": true, "me": true, "info": true, "biz": true,
	"us": true, "uk": true, "ca": true, "au": true, "de": true,
	"fr": true, "es": true, "it": true, "nl": true, "se": true,
	"no": true, "fi": true, "dk": true, "jp": true, "kr": true,
	"cn": true, "in": true, "br": true, "mx": true, "ru": true,
	"ch": true, "at": true, "be": true, "ie": true, "nz": true,
	"pl": true, "pt": true, "tv": true, "cc": true, "xyz": true,
}

// restrictedWords are substrings banned from usernames.
var restrictedWords = []string{
	"admin",
	"administrator",
	"moderator",
	"support",
	"root",
	"system",
	"official",
	"staff",
	"superuser",
}
