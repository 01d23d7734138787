package model

// Account is a bank or card account that transactions belong to.
type Account struct {
	ID       string
	Name     string
	IBAN     string
	Number   string
	Currency string
	Bank     string
}
