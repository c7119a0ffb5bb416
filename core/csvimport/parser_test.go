package csvimport

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "first_name,last_name,birth_date,gender,grade,attendance_date,attendance_status\n"

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_schema(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantMissing []string
		wantSuggest map[string]string
	}{
		{name: "empty file", data: "", wantMissing: Columns},
		{
			name:        "missing two columns",
			data:        "first_name,last_name,birth_date,gender,grade\nAna,Ruiz,2014-03-01,F,5\n",
			wantMissing: []string{ColAttendanceDate, ColAttendanceStatus},
		},
		{
			name:        "near miss is suggested",
			data:        "first_name,last_name,birthdate,gender,grade,attendance_date,attendance_status\n",
			wantMissing: []string{ColBirthDate},
			wantSuggest: map[string]string{ColBirthDate: "birthdate"},
		},
		{
			name:        "names are case sensitive",
			data:        "First_Name,last_name,birth_date,gender,grade,attendance_date,attendance_status\n",
			wantMissing: []string{ColFirstName},
			wantSuggest: map[string]string{ColFirstName: "First_Name"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdr, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Nil(t, rdr)

			schemaErr, ok := errors.Cause(err).(*SchemaError)
			require.True(t, ok, "want *SchemaError, got %T", err)
			assert.Equal(t, tt.wantMissing, schemaErr.Missing)
			for col, want := range tt.wantSuggest {
				assert.Equal(t, want, schemaErr.Suggestions[col])
			}
		})
	}
}

func TestParse_headerOrderAndExtras(t *testing.T) {
	data := "attendance_status,grade,notes,first_name,last_name,birth_date,gender,attendance_date\n" +
		"Presente,5,hello,Ana,Ruiz,2014-03-01,F,2024-05-01\n"

	rdr, err := Parse([]byte(data))
	require.NoError(t, err)
	rows, rowErrs, err := rdr.All()
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{
		Index:          1,
		FirstName:      "Ana",
		LastName:       "Ruiz",
		BirthDate:      date(2014, time.March, 1),
		Gender:         "F",
		Grade:          "5",
		AttendanceDate: date(2024, time.May, 1),
		Present:        true,
	}, rows[0])
}

func TestParse_encoding(t *testing.T) {
	data := append([]byte(header), 0xff, 0xfe, 'x', '\n')

	_, err := Parse(data)
	require.Error(t, err)
	encErr, ok := errors.Cause(err).(*EncodingError)
	require.True(t, ok, "want *EncodingError, got %T", err)
	assert.Equal(t, len(header), encErr.Offset)
}

func TestParse_bom(t *testing.T) {
	data := append([]byte{0xef, 0xbb, 0xbf}, []byte(header+"José,Núñez,2010-01-02,M,8,2024-02-03,ausente\n")...)

	rdr, err := Parse(data)
	require.NoError(t, err)
	rows, rowErrs, err := rdr.All()
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Equal(t, "José", rows[0].FirstName)
	assert.Equal(t, "Núñez", rows[0].LastName)
	assert.False(t, rows[0].Present)
}

func TestReader_rowErrors(t *testing.T) {
	data := header +
		"Ana,Ruiz,2014-03-01,F,5,2024-05-01,Presente\n" +
		"Luis,Gómez,not-a-date,M,6,2024-05-01,Presente\n" +
		",Pérez,2013-01-01,F,6,2024-05-01,Ausente\n" +
		"Eva,Díaz,2013-01-01,F,6,2024-13-45,Ausente\n" +
		",,,,,,\n" +
		"Sara,Mora,2012-07-09,F,7,2024-05-02\n"

	rdr, err := Parse([]byte(data))
	require.NoError(t, err)
	rows, rowErrs, err := rdr.All()
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Index)

	require.Len(t, rowErrs, 4)
	assert.Equal(t, 2, rowErrs[0].Index)
	assert.Equal(t, ColBirthDate, rowErrs[0].Field)
	assert.Equal(t, 3, rowErrs[1].Index)
	assert.Equal(t, ColFirstName, rowErrs[1].Field)
	assert.Equal(t, "first_name must not be blank", rowErrs[1].Message)
	assert.Equal(t, 4, rowErrs[2].Index)
	assert.Equal(t, ColAttendanceDate, rowErrs[2].Field)
	assert.Equal(t, 6, rowErrs[3].Index, "a short record is not an absence")
	assert.Contains(t, rowErrs[3].Message, "wrong number of fields")
}

func TestReader_fieldCount(t *testing.T) {
	data := header +
		"Eva,Díaz,2013-01-01,F,6,2024-05-01\n" +
		"Ana,Ruiz,2014-03-01,F,5,2024-05-01,Presente,extra\n" +
		",,\n" +
		"Sara,Mora,2012-07-09,F,7,2024-05-02,Presente\n"

	rdr, err := Parse([]byte(data))
	require.NoError(t, err)
	rows, rowErrs, err := rdr.All()
	require.NoError(t, err)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 1, rowErrs[0].Index)
	assert.Equal(t, 2, rowErrs[1].Index)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sara", rows[0].FirstName)
	assert.Equal(t, 4, rows[0].Index)
	assert.True(t, rows[0].Present)
}

func TestReader_malformedRecord(t *testing.T) {
	data := header +
		"Ana,Ru\"iz,2014-03-01,F,5,2024-05-01,Presente\n" +
		"Sara,Mora,2012-07-09,F,7,2024-05-02,presente\n"

	rdr, err := Parse([]byte(data))
	require.NoError(t, err)
	rows, rowErrs, err := rdr.All()
	require.NoError(t, err)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 1, rowErrs[0].Index)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Index)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2014-03-01", want: date(2014, time.March, 1)},
		{in: " 2014-3-1 ", want: date(2014, time.March, 1)},
		{in: "2014-03-01 00:00:00", want: date(2014, time.March, 1)},
		{in: "2014-03-01T08:30:00", want: date(2014, time.March, 1)},
		{in: "2014-03-01T23:30:00-05:00", want: date(2014, time.March, 1)},
		{in: "01/03/2014", want: date(2014, time.March, 1)},
		{in: "1-3-2014", want: date(2014, time.March, 1)},
		{in: "2014/03/01", want: date(2014, time.March, 1)},
		{in: "2014-02-30", wantErr: true},
		{in: "yesterday", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		})
	}
}

func TestParsePresence(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "Presente", want: true},
		{in: " PRESENTE ", want: true},
		{in: "present", want: true},
		{in: "Ausente", want: false},
		{in: "presnte", want: false},
		{in: "", want: false},
		{in: "1", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePresence(tt.in))
		})
	}
}
