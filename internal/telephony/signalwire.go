package telephony

import "strings"

// NewSignalWire builds the SignalWire adapter on top of its Twilio-compatible
// LaML API. Requires project_id, auth_token and space_url (e.g. example.signalwire.com).
func NewSignalWire(cfg CarrierConfig, opts ...Option) (Carrier, error) {
	cfg.Provider = ProviderSignalWire
	if err := cfg.require("project_id", "auth_token", "space_url"); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	project := cfg.credential("project_id")
	base := o.baseURL
	if base == "" {
		space := strings.TrimPrefix(strings.TrimPrefix(cfg.credential("space_url"), "https://"), "http://")
		base = "https://" + strings.TrimRight(space, "/")
	}
	return newLaML(cfg, o, base+"/api/laml/2010-04-01/Accounts/"+project, project, cfg.credential("auth_token")), nil
}
