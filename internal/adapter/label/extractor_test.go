package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhp/internal/domain"
	"nhp/internal/port"
)

var _ port.IngredientExtractor = (*Extractor)(nil)

func names(ings []domain.Ingredient, sec domain.Section) []string {
	var out []string
	for _, i := range ings {
		if i.Section == sec {
			out = append(out, i.Name)
		}
	}
	return out
}

func TestExtractSections(t *testing.T) {
	text := `ACME Immune Support
Medicinal Ingredients (per capsule):
Vitamin C (ascorbic acid)   500 mg
Zinc (zinc citrate) 15 mg
Vitamin D3 1,000 IU
Non-medicinal ingredients: Purified Water, magnesium stearate; hypromellose (capsule)
Recommended dose: Adults take 1 capsule daily.
Warnings: Consult a health care practitioner if pregnant.
`
	ings := NewExtractor(false).Extract(text)

	assert.Equal(t, []string{"Vitamin C", "Zinc", "Vitamin D3"}, names(ings, domain.SectionMedicinal))
	assert.Equal(t, []string{"Purified Water", "magnesium stearate", "hypromellose"}, names(ings, domain.SectionNonMedicinal))

	require.NotEmpty(t, ings)
	assert.Equal(t, "500 mg", ings[0].DeclaredAmount)
	assert.Equal(t, "1,000 IU", ings[2].DeclaredAmount)
}

func TestExtractNonMedicinalHeaderNeverOpensMedicinal(t *testing.T) {
	ings := NewExtractor(false).Extract("Non-medicinal ingredients:\nPurified Water\n")

	require.Len(t, ings, 1)
	assert.Equal(t, "Purified Water", ings[0].Name)
	assert.Equal(t, domain.SectionNonMedicinal, ings[0].Section)
}

func TestExtractHeaderVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
		sec  domain.Section
	}{
		{"each capsule contains", "Each capsule contains: Ashwagandha root extract (Withania somnifera) 300 mg", []string{"Ashwagandha root extract"}, domain.SectionMedicinal},
		{"active inline", "Active: Melatonin 3 mg", []string{"Melatonin"}, domain.SectionMedicinal},
		{"inactive ingredients", "Inactive Ingredients:\n- Microcrystalline cellulose\n- Silicon dioxide", []string{"Microcrystalline cellulose", "Silicon dioxide"}, domain.SectionNonMedicinal},
		{"excipients", "Excipients: croscarmellose sodium", []string{"croscarmellose sodium"}, domain.SectionNonMedicinal},
		{"formulation", "EACH TABLET CONTAINS:\nActive Ingredients:\nIron   18 mg\nInactive Ingredients:\nStearic acid\nTotal weight: 450 mg", []string{"Iron"}, domain.SectionMedicinal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ings := NewExtractor(false).Extract(tt.text)
			assert.Equal(t, tt.want, names(ings, tt.sec))
		})
	}
}

func TestExtractLeavesSectionOnDirections(t *testing.T) {
	text := "Medicinal ingredients:\nEchinacea purpurea 200 mg\nDirections:\nTake with food\nStorage: keep dry"
	ings := NewExtractor(false).Extract(text)

	assert.Equal(t, []string{"Echinacea purpurea"}, names(ings, domain.SectionMedicinal))
}

func TestExtractWithoutMedicinalSection(t *testing.T) {
	ings := NewExtractor(false).Extract("Other ingredients: rice flour, gelatin")

	assert.Empty(t, names(ings, domain.SectionMedicinal))
	assert.Equal(t, []string{"rice flour", "gelatin"}, names(ings, domain.SectionNonMedicinal))
}

func TestExtractDeduplicatesPerSection(t *testing.T) {
	text := "Medicinal ingredients:\nZinc 10 mg\nZINC 5 mg\nNon-medicinal ingredients:\nzinc"
	ings := NewExtractor(false).Extract(text)

	assert.Equal(t, []string{"Zinc"}, names(ings, domain.SectionMedicinal))
	assert.Equal(t, []string{"zinc"}, names(ings, domain.SectionNonMedicinal))
}

func TestExtractSkipsOutsideSections(t *testing.T) {
	assert.Empty(t, NewExtractor(false).Extract("Lot 123456\nBest before 2027\n"))
	assert.Empty(t, NewExtractor(false).Extract(""))
}

func TestExtractEndsSectionsAtTrailingLabelText(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		medicinal    []string
		nonMedicinal []string
	}{
		{
			name:         "blank line then registration and manufacturer",
			text:         "Medicinal Ingredients:\nVitamin C 500 mg\n\nNPN 80012345\nManufactured for Acme Health Inc.\nMade in Canada\nNon-medicinal ingredients: cellulose\nLot 23451 Exp 2027",
			medicinal:    []string{"Vitamin C"},
			nonMedicinal: []string{"cellulose"},
		},
		{
			name:         "prose after both sections",
			text:         "Medicinal ingredients:\nZinc 15 mg\nEchinacea purpurea 200 mg\n\nSupports immune function in adults\nNon-medicinal ingredients:\nrice flour\n\nKeep out of reach of children\nDistributed by Acme",
			medicinal:    []string{"Zinc", "Echinacea purpurea"},
			nonMedicinal: []string{"rice flour"},
		},
		{
			name:         "blank line before the first entry keeps the section open",
			text:         "Medicinal ingredients:\n\nMelatonin 3 mg\n\nDIN 02345678",
			medicinal:    []string{"Melatonin"},
		},
		{
			name:         "table header row is skipped",
			text:         "Medicinal ingredients:\nIngredient Name    Quantity\nMagnesium citrate   150 mg\nExp 2027/01",
			medicinal:    []string{"Magnesium citrate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ings := NewExtractor(false).Extract(tt.text)
			assert.Equal(t, tt.medicinal, names(ings, domain.SectionMedicinal))
			assert.Equal(t, tt.nonMedicinal, names(ings, domain.SectionNonMedicinal))
		})
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Vitamin K2 (MenaQ7) MenaQ7", "Vitamin K2", true},
		{"PharmaPure Curcumin*", "Curcumin", true},
		{"Green Tea Extract 20240117", "Green Tea Extract", true},
		{"Colloidal Silver 10 ppm", "Colloidal Silver 10", true},
		{"Fish Oil", "Fish Oil", true},
		{"Zn", "", false},
		{"1234", "", false},
		{"a very long ingredient name with far too many words", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CleanName(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSingleIngredientFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"inspection form", "Receiving Inspection\nItem Name Turmeric Powder (lot 44)\n", "Turmeric Powder"},
		{"certificate of analysis", "CERTIFICATE OF ANALYSIS\nMilk Thistle Extract\nTESTS\nAssay", "Milk Thistle Extract"},
		{"product name", "PRODUCT NAME: Elderberry Syrup\n", "Elderberry Syrup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ings := NewExtractor(true).Extract(tt.text)
			require.Len(t, ings, 1)
			assert.Equal(t, tt.want, ings[0].Name)
			assert.Equal(t, domain.SectionMedicinal, ings[0].Section)

			assert.Empty(t, NewExtractor(false).Extract(tt.text))
		})
	}
}
