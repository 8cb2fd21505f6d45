package document

import (
	"testing"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeSpec(t *testing.T) {
	t.Run("every type has a spec", func(t *testing.T) {
		for _, typ := range Types() {
			spec, err := typ.Spec()
			require.NoError(t, err, typ)
			assert.Equal(t, typ, spec.Type)
			assert.NotNil(t, spec.Pattern)
		}
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := Type("INVOICE").Spec()
		assert.Error(t, err)
		_, err = ParseType("invoice")
		assert.Error(t, err)
	})

	t.Run("parse is case insensitive", func(t *testing.T) {
		typ, err := ParseType(" receipt ")
		require.NoError(t, err)
		assert.Equal(t, TypeReceipt, typ)
	})

	t.Run("formatted numbers match their own pattern", func(t *testing.T) {
		cases := map[Type]string{
			TypeReceipt:       "007/2024",
			TypeSaleDeed:      "AV-0007/2024",
			TypeFinancialCert: "CSF-007/2024",
			TypeRequisition:   "RQ-00007",
		}
		for typ, want := range cases {
			spec, _ := typ.Spec()
			got := spec.Format(7, "2024")
			assert.Equal(t, want, got)
			assert.NoError(t, spec.Validate(got))
		}
	})

	t.Run("validate rejects malformed numbers", func(t *testing.T) {
		spec, _ := TypeReceipt.Spec()
		for _, n := range []string{"7/2024", "0007/2024", "007-2024", "007/", "abc/2024"} {
			err := spec.Validate(n)
			assert.ErrorIs(t, err, shared.ErrInvalidNumberFormat, n)
		}
	})

	t.Run("receipt overflow no longer matches", func(t *testing.T) {
		spec, _ := TypeReceipt.Spec()
		assert.Error(t, spec.Validate(spec.Format(1000, "2024")))
	})

	t.Run("sequence of extracts the counter", func(t *testing.T) {
		spec, _ := TypeSaleDeed.Spec()
		seq, err := spec.SequenceOf("AV-0042/2023")
		require.NoError(t, err)
		assert.Equal(t, int64(42), seq)

		rq, _ := TypeRequisition.Spec()
		seq, err = rq.SequenceOf("RQ-123456")
		require.NoError(t, err)
		assert.Equal(t, int64(123456), seq)
	})

	t.Run("scope keys", func(t *testing.T) {
		dossierID := uuid.New()
		receipt, _ := TypeReceipt.Spec()
		deed, _ := TypeSaleDeed.Spec()
		rq, _ := TypeRequisition.Spec()

		assert.Equal(t, "doc:RECEIPT:"+dossierID.String(), receipt.ScopeKey(dossierID))
		assert.Equal(t, "doc:SALE_DEED", deed.ScopeKey(dossierID))
		assert.Equal(t, "doc:RECEIPT:"+dossierID.String()+"/2024", receipt.SequenceKey(dossierID, "2024"))
		assert.Equal(t, "doc:REQUISITION", rq.SequenceKey(dossierID, "2024"))
	})
}

func TestGeneratedDocument_Supersede(t *testing.T) {
	spec, _ := TypeReceipt.Spec()
	entity := uuid.New()
	doc := NewGeneratedDocument(uuid.New(), uuid.New(), spec, "001/2024", 1, &entity, uuid.New())
	assert.True(t, doc.IsActive())
	assert.Equal(t, spec.ScopeKey(doc.DossierID), doc.ScopeKey)

	replacement := uuid.New()
	require.NoError(t, doc.Supersede(replacement))
	assert.Equal(t, StatusSuperseded, doc.Status)
	assert.Equal(t, &replacement, doc.SupersededBy)
	assert.ErrorIs(t, doc.Supersede(uuid.New()), shared.ErrInvalidState)

	doc.RecordAllocated(uuid.New(), []string{"000/2024"})
	events := doc.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, []string{"000/2024"}, events[0].(*DocumentAllocatedEvent).Supersedes)
}
