package transform

// DeliveryRequest is the JSON batch envelope used by delivery streams: each
// record carries an id and base64 data.
type DeliveryRequest struct {
	Records []DeliveryRecord `json:"records"`
}

type DeliveryRecord struct {
	RecordID string `json:"recordId"`
	Data     string `json:"data"`
}

type DeliveryResponse struct {
	Records []DeliveryResult `json:"records"`
}

type DeliveryResult struct {
	RecordID string `json:"recordId"`
	Result   Result `json:"result"`
	Data     string `json:"data"`
}

// TransformDelivery transforms a delivery-stream batch. The transformer
// should use the Base64 envelope; record ids and order are preserved.
func (t *Transformer) TransformDelivery(req DeliveryRequest) DeliveryResponse {
	batch := make([]Record, len(req.Records))
	for i, r := range req.Records {
		batch[i] = Record{ID: r.RecordID, Data: []byte(r.Data)}
	}

	outcomes := t.Transform(batch)
	resp := DeliveryResponse{Records: make([]DeliveryResult, len(outcomes))}
	for i, o := range outcomes {
		resp.Records[i] = DeliveryResult{RecordID: o.RecordID, Result: o.Result, Data: string(o.Data)}
	}
	return resp
}
