package domain

// Classification 是由 CatalogEntry 推导出的放置标记。
type Classification struct {
	Client    bool `json:"client"`
	Server    bool `json:"server"`
	ReqClient bool `json:"req_client"`
	ReqServer bool `json:"req_server"`
	Potato    bool `json:"potato"`
}

// Classify 只看两端声明；unknown/error 请先换成 FallbackEntry。
func Classify(e CatalogEntry) Classification {
	return Classification{
		Client:    e.ClientSide.Supported(),
		Server:    e.ServerSide.Supported(),
		ReqClient: e.ClientSide.Required(),
		ReqServer: e.ServerSide.Required(),
		Potato:    e.ClientSide.Required() && e.ServerSide.Required(),
	}
}
