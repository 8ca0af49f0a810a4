package transaction

// PartitionKey returns the stream partition key: the card's last four digits
// when known, otherwise the transaction id. Cards keep their transactions on
// one partition.
func PartitionKey(tx Transaction) string {
	if tx.CardLast4 != "" {
		return tx.CardLast4
	}
	return tx.ID
}
