package wsv

// Canonical KV key paths (spec.md §4.3: "wsv/domain/{d}/account/{a}/asset/{asset}").
// Every path segment is built only from the radix alphabet (letters,
// digits, '_', '/', '#', '@', '-'), which account/asset/domain/role
// identifiers are already restricted to.

const (
	prefixPeer        = "wsv/peer/"
	prefixDomain      = "wsv/domain/"
	prefixRole        = "wsv/role/"
	prefixAsset       = "wsv/asset/"
	prefixAccount     = "wsv/account/"
	prefixAccountAsset = "wsv/account_asset/"
	prefixGrantable   = "wsv/grantable/"
	prefixSetting     = "wsv/setting/"
	keyTopBlock       = "wsv/top_block"
)

func peerKey(pubkey string) string    { return prefixPeer + pubkey }
func domainKey(domain string) string  { return prefixDomain + domain }
func roleKey(role string) string      { return prefixRole + role }
func assetKey(assetID string) string  { return prefixAsset + assetID }
func accountKey(accountID string) string { return prefixAccount + accountID }

func accountAssetKey(accountID, assetID string) string {
	return prefixAccountAsset + accountID + "/" + assetID
}

func accountAssetPrefix(accountID string) string {
	return prefixAccountAsset + accountID + "/"
}

func grantableKey(from, to, permission string) string {
	return prefixGrantable + from + "/" + to + "/" + permission
}

func settingKey(name string) string { return prefixSetting + name }
