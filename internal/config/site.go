package config

import "maps"

// SiteConfig holds request settings for one host.
type SiteConfig struct {
	// Cookie is sent as the Cookie header. Format: "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File is the structure of the configuration file.
type File struct {
	// Defaults apply to every host unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host name (without scheme) to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// MIMETypes adds or overrides content type to extension mappings used
	// when a resource URL has no extension. An empty value removes a
	// built-in mapping.
	MIMETypes map[string]string `yaml:"mimeTypes,omitempty"`
}

// NewFile returns an empty configuration file.
func NewFile() *File {
	return &File{Sites: make(map[string]SiteConfig)}
}

// GetSiteConfig returns the settings for host merged over the defaults.
// Site headers are added to the default headers and win on conflict.
func (f *File) GetSiteConfig(host string) SiteConfig {
	result := f.Defaults
	result.Headers = maps.Clone(f.Defaults.Headers)

	site, ok := f.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}
