package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOFX = `
OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>Info
</STATUS>
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250115120000[0:GMT]
<TRNAMT>-15.99
<FITID>2025011501
<NAME>NETFLIX.COM
<MEMO>Monthly plan
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20250125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2025012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250131120000[0:GMT]
<TRNAMT>3000.00
<FITID>2025013101
<NAME>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestOFXParser_Parse(t *testing.T) {
	p := &OFXParser{}
	txns, err := p.Parse(strings.NewReader(sampleOFX), "checking")
	require.NoError(t, err)
	require.Len(t, txns, 3)

	first := txns[0]
	assert.Equal(t, "2025011501", first.ID)
	assert.Equal(t, "checking", first.AccountID)
	assert.Equal(t, "NETFLIX.COM, Monthly plan", first.Description)
	assert.Equal(t, "-15.99", first.Amount.StringFixed(2))
	assert.Equal(t, 15, first.Date.Day())
	assert.Equal(t, "DEBIT", first.RawFields["TRNTYPE"])
	assert.Equal(t, "1234567890", first.RawFields["ACCTID"])

	assert.Equal(t, "1234", txns[1].RawFields["CHECKNUM"])
	assert.True(t, txns[2].Amount.IsPositive())
}

func TestOFXParser_Invalid(t *testing.T) {
	_, err := (&OFXParser{}).Parse(strings.NewReader("not ofx"), "checking")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing OFX")
}

func TestOFXParser_Registered(t *testing.T) {
	assert.NotNil(t, DefaultRegistry().Get("OFX"))
}
