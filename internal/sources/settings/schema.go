package settings

// File is the operator settings file. Absent keys leave the stored value
// untouched.
//
//	enabled: true
//	proxy: "10.0.0.1:3128:alice:${PROXY_PASSWORD}"
//	user_sites:
//	  - custom.net
//	  - https://other.org/path
type File struct {
	Enabled   *bool    `yaml:"enabled"`
	Proxy     *string  `yaml:"proxy"`
	UserSites []string `yaml:"user_sites"`
}
