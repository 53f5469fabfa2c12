package executor

// Permission names checked against an account's role permission sets.
// RootPermission bypasses every other check (spec.md §4.4).
const (
	RootPermission = "root"

	PermCreateDomain  = "can_create_domain"
	PermCreateRole    = "can_create_role"
	PermCreateAsset   = "can_create_asset"
	PermCreateAccount = "can_create_account"
	PermAddPeer       = "can_add_peer"
	PermRemovePeer    = "can_remove_peer"
	PermAddSignatory  = "can_add_signatory"
	PermSetQuorum     = "can_set_quorum"
	PermAppendRole    = "can_append_role"
	PermDetachRole    = "can_detach_role"
	PermAddAssetQty   = "can_add_asset_qty"
	PermSubAssetQty   = "can_subtract_asset_qty"
	PermSetSetting    = "can_set_setting_value"
	PermCallEngine    = "can_call_engine"

	// GrantableTransferMyAssets lets the grantee transfer the grantor's
	// assets on the grantor's behalf (spec.md §4.4).
	GrantableTransferMyAssets = "can_transfer_my_assets"

	grantPrefix = "can_grant_"
)

// grantCapability is the role permission a grantor must hold to give away a
// grantable permission (spec.md §4.4 step 2 lists grant/revoke as
// permission-checked), named "can_grant_<permission>" following this
// package's own can_verb_noun convention.
func grantCapability(permission string) string {
	return grantPrefix + permission
}
