package normalize

import (
	"testing"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocketNumberCore(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1:14-cv-00123", want: "1400123"},
		{in: "2:21-cr-1-JMS-1", want: "2100001"},
		{in: "14-cv-123", want: "1400123"},
		{in: "22-1234", want: "2201234"},
		{in: "3:20-bk-55555-ABC", want: "2055555"},
		{in: "nonsense", want: ""},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DocketNumberCore(tt.in))
		})
	}
}

func TestCleanDocketNumber(t *testing.T) {
	assert.Equal(t, "1:14-cv-00123", CleanDocketNumber("1:14-CV-00123-ABC-1"))
	assert.Equal(t, "22-1234", CleanDocketNumber(" 22-1234 "))
	assert.Equal(t, "misc", CleanDocketNumber("MISC"))
	assert.Equal(t, "", CleanDocketNumber("  "))
}

func TestEntryNumber(t *testing.T) {
	n := EntryNumber("42")
	require.NotNil(t, n)
	assert.Equal(t, int64(42), *n)
	assert.Nil(t, EntryNumber(""))
	assert.Nil(t, EntryNumber("12a"))
}

func TestIsLongAppellateDocumentNumber(t *testing.T) {
	assert.True(t, IsLongAppellateDocumentNumber("00107012345"))
	assert.False(t, IsLongAppellateDocumentNumber("12"))
	assert.False(t, IsLongAppellateDocumentNumber(""))
}

func TestLongDescription(t *testing.T) {
	assert.Equal(t, "ORDER granting 12 motion", LongDescription("ORDER granting [12] motion (Entered: 01/02/2014)"))
	assert.Equal(t, "Minute entry", LongDescription("Minute entry"))
	assert.Equal(t, "", LongDescription(""))
}

func TestCaseNameShort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Lissner v. Saad", want: "Lissner"},
		{in: "United States v. Jones", want: "Jones"},
		{in: "Apple Inc., et al. v. Samsung", want: "Apple Inc."},
		{in: "In re Motors Liquidation Company", want: ""},
		{in: UnknownCaseTitle, want: ""},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CaseNameShort(tt.in))
		})
	}
}

func TestParseAttorneyRole(t *testing.T) {
	lead := ParseAttorneyRole("LEAD ATTORNEY")
	assert.Equal(t, database.RoleAttorneyLead, lead.Role)
	assert.Nil(t, lead.DateAction)

	term := ParseAttorneyRole("TERMINATED: 03/12/2013")
	assert.Equal(t, database.RoleTerminated, term.Role)
	require.NotNil(t, term.DateAction)
	assert.Equal(t, time.Date(2013, 3, 12, 0, 0, 0, 0, time.UTC), *term.DateAction)

	self := ParseAttorneyRole("SELF- TERMINATED: 1/5/2020")
	assert.Equal(t, database.RoleSelfTerminated, self.Role)

	assert.Equal(t, database.RoleUnknown, ParseAttorneyRole("Designation: Retained").Role)
}

func TestAttorneyRolesDeduplicates(t *testing.T) {
	roles := AttorneyRoles([]string{
		"LEAD ATTORNEY",
		"lead attorney",
		"TERMINATED: 03/12/2013",
		"TERMINATED: 03/12/2013",
		"TERMINATED: 04/12/2013",
	})
	require.Len(t, roles, 3)
	assert.Equal(t, database.RoleAttorneyLead, roles[0].Role)
	assert.Equal(t, database.RoleTerminated, roles[1].Role)
	assert.Equal(t, database.RoleTerminated, roles[2].Role)
}

func TestAttorneyContact(t *testing.T) {
	contact := "Motley Rice LLC\n" +
		"20 Church Street\n" +
		"17th Floor\n" +
		"Hartford, CT 06103\n" +
		"860-882-1676\n" +
		"Fax: 860-882-1682\n" +
		"Email: bnarwold@motleyrice.com"

	org, atty := AttorneyContact(contact, "William H. Narwold")
	require.NotNil(t, org)
	assert.Equal(t, "Motley Rice LLC", org.Name)
	assert.Equal(t, "20 Church Street", org.Address1)
	assert.Equal(t, "17th Floor", org.Address2)
	assert.Equal(t, "Hartford", org.City)
	assert.Equal(t, "CT", org.State)
	assert.Equal(t, "06103", org.ZipCode)
	assert.Equal(t, "motleyricellc20churchstreet17thfloorhartfordct06103", org.LookupKey)

	assert.Equal(t, "bnarwold@motleyrice.com", atty.Email)
	assert.Equal(t, "(860) 882-1676", atty.Phone)
	assert.Equal(t, "(860) 882-1682", atty.Fax)

	// Same firm written differently yields the same key.
	org2, _ := AttorneyContact("MOTLEY RICE LLC\n20 Church  Street\n17th Floor\nHartford CT 06103", "")
	require.NotNil(t, org2)
	assert.Equal(t, org.LookupKey, org2.LookupKey)
}

func TestAttorneyContactWithoutAddress(t *testing.T) {
	org, atty := AttorneyContact("Email: someone@example.com", "Someone")
	assert.Nil(t, org)
	assert.Equal(t, "someone@example.com", atty.Email)

	org, _ = AttorneyContact("", "Someone")
	assert.Nil(t, org)
}

func TestSizeToBytes(t *testing.T) {
	n, err := SizeToBytes("1.5 MB")
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), n)

	n, err = SizeToBytes("2 KiB")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), n)

	_, err = SizeToBytes("big")
	assert.Error(t, err)
}

func TestAnonymize(t *testing.T) {
	out, changed := Anonymize("A-123-456-789")
	assert.True(t, changed)
	assert.Equal(t, "A-XXX-XXX-XXX", out)

	out, changed = Anonymize("1:20-cv-1")
	assert.False(t, changed)
	assert.Equal(t, "1:20-cv-1", out)
}

func TestCriminalCountStatus(t *testing.T) {
	assert.Equal(t, database.CriminalCountTerminated, CriminalCountStatus("Terminated"))
	assert.Equal(t, database.CriminalCountPending, CriminalCountStatus("pending"))
}
