// Package assetlinks verifies Digital Asset Links statement lists
// (https://developers.google.com/digital-asset-links) published by web origins.
package assetlinks

// Statement list grammar.
const (
	// MaxURIs bounds a statement list tree: the source document plus ten includes.
	MaxURIs = 11

	KeyInclude   = "include"
	KeyRelation  = "relation"
	KeyTarget    = "target"
	KeyNamespace = "namespace"

	RelationHandleAllURLs  = "delegate_permission/common.handle_all_urls"
	RelationGetLoginCreds  = "delegate_permission/common.get_login_creds"
	NamespaceWeb           = "web"
	KeyWebSite             = "site"
	NamespaceAndroidApp    = "android_app"
	KeyPackageName         = "package_name"
	KeySHA256Fingerprints  = "sha256_cert_fingerprints"
	wellKnownAssetLinksURI = "/.well-known/assetlinks.json"
)
