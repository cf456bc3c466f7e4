package controllers

// recordReq is the body of POST /v1/datalog/record. Payload is base64 in
// JSON. A missing timestamp_ms means the server clock.
type recordReq struct {
	Payload     []byte `json:"payload"`
	TimestampMs *int64 `json:"timestamp_ms"`
}

type recordResp struct {
	Account     string `json:"account"`
	TimestampMs int64  `json:"timestamp_ms"`
}

type recordItem struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Payload     []byte `json:"payload"`
}

type queryResp struct {
	Account string       `json:"account"`
	Records []recordItem `json:"records"`
}
