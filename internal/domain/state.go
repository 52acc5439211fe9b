package domain

import "time"

// Field names a persisted state field. Change notifications carry one of
// these values.
type Field string

const (
	FieldEnabled          Field = "enabled"
	FieldProxyConfig      Field = "proxyConfigString"
	FieldGeoDomains       Field = "geoDomains"
	FieldGeoReady         Field = "geoReady"
	FieldCacheEtag        Field = "cacheEtag"
	FieldLastUpdate       Field = "lastUpdateTimestamp"
	FieldDownloadProgress Field = "downloadProgress"
	FieldUserSites        Field = "userSites"
)

// KnownFields lists every field that may appear in a notification.
var KnownFields = []Field{
	FieldEnabled,
	FieldProxyConfig,
	FieldGeoDomains,
	FieldGeoReady,
	FieldCacheEtag,
	FieldLastUpdate,
	FieldDownloadProgress,
	FieldUserSites,
}

// IsKnown reports whether f is one of KnownFields.
func (f Field) IsKnown() bool {
	for _, k := range KnownFields {
		if f == k {
			return true
		}
	}
	return false
}

// Settings are the operator controlled switches.
type Settings struct {
	Enabled     bool
	ProxyConfig string // host:port[:user[:pass]]
}

// CacheMetadata is the conditional-fetch validator stored with the geo set.
type CacheMetadata struct {
	ETag       string
	LastUpdate int64 // unix milliseconds, 0 when never fetched from a mirror
}

// LastUpdateTime converts LastUpdate to a time, zero when unset.
func (m CacheMetadata) LastUpdateTime() time.Time {
	if m.LastUpdate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.LastUpdate)
}

// GeoSnapshot is the committed geo domain set and its cache metadata. The
// two are always read and written together.
type GeoSnapshot struct {
	Domains []string
	Ready   bool
	Meta    CacheMetadata
}

// GeoSummary describes the committed geo set without its domains.
type GeoSummary struct {
	Ready bool
	Count int
	Meta  CacheMetadata
}
