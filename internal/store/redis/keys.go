package redis

import "github.com/MrSnakeDoc/georoute/internal/domain"

const (
	// KeySettings is the hash holding operator switches
	KeySettings = "georoute:settings"
	// KeyUserSites holds the operator site list; it lives in the synced scope
	KeyUserSites = "georoute:sync:userSites"
	// KeyGeo is the hash holding the geo domain set together with its cache metadata
	KeyGeo = "georoute:geo"
	// KeyProgress holds the JSON encoded download progress record
	KeyProgress = "georoute:downloadProgress"
	// ChannelChanges carries the name of every changed field
	ChannelChanges = "georoute:changes"
)

// Hash fields of KeySettings and KeyGeo reuse the persisted field names.
const (
	hashEnabled     = string(domain.FieldEnabled)
	hashProxyConfig = string(domain.FieldProxyConfig)
	hashDomains     = string(domain.FieldGeoDomains)
	hashReady       = string(domain.FieldGeoReady)
	hashEtag        = string(domain.FieldCacheEtag)
	hashLastUpdate  = string(domain.FieldLastUpdate)
)

// hashCount stores len(domains) so summaries skip decoding the list
const hashCount = "geoCount"
