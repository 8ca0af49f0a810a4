package transaction

// Field names of the transaction wire format.
const (
	FieldID         = "transaction_id"
	FieldTimestamp  = "timestamp"
	FieldAmount     = "amount"
	FieldCurrency   = "currency"
	FieldCountry    = "country"
	FieldMerchant   = "merchant"
	FieldCardLast4  = "card_last4"
	FieldFeatures   = "features"
	FieldIngestTS   = "ingest_ts"
	FieldIsHighRisk = "is_high_risk"
)

// IngestTSLayout is the format of the ingest_ts enrichment field.
const IngestTSLayout = "2006-01-02T15:04:05Z"

// Transaction is a validated transaction. Payload is the map it was
// validated from and is what gets written to the stream.
type Transaction struct {
	ID        string
	Timestamp string
	Amount    float64
	Currency  string
	Country   string
	Merchant  string
	CardLast4 string
	Features  map[string]any
	Payload   map[string]any
}

// DeviceTrust returns features.device_trust when present.
func DeviceTrust(payload map[string]any) (any, bool) {
	features, ok := payload[FieldFeatures].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := features["device_trust"]
	return v, ok && v != nil
}
