package dto

// Requests and responses of the command API.

type PostForecastReq struct {
	Location string   `json:"location"`
	PostType string   `json:"postType"`
	SlotTime string   `json:"slotTime,omitempty"` // RFC3339; defaults to now
	Forecast Forecast `json:"forecast"`
}

type PostAlertReq struct {
	Location string `json:"location"`
	Alert    Alert  `json:"alert"`
}

type PublishResp struct {
	Published bool `json:"published"`
}

type DrainResp struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Requeued  int `json:"requeued"`
	Dropped   int `json:"dropped"`
}
