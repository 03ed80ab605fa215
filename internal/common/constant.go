package common

// GrantTypeWindowsIdentity is the only grant type accepted by the issue flow.
const GrantTypeWindowsIdentity = "windows_identity"

// DevIdentityHeader carries a principal name in development setups where no
// authenticating proxy is in front of the service.
const DevIdentityHeader = "X-Dev-Windows-User"

// TokenTypeBearer is reported in every token response.
const TokenTypeBearer = "Bearer"
