package b2b

// Note is the canonical invoice wording for a treatment, in one language.
type Note struct {
	Language string `json:"language"`
	Short    string `json:"short"`
	Long     string `json:"long"`
}

// DefaultLanguage is the fallback when a requested translation is absent.
const DefaultLanguage = "en"

// reverseChargeNotes carries the canonical reverse-charge wording. Keyed by
// lowercase ISO 639-1 language codes.
var reverseChargeNotes = map[string]Note{
	"en": {"en", "Reverse charge",
		"Reverse charge: VAT to be accounted for by the recipient pursuant to Article 196 of Council Directive 2006/112/EC."},
	"de": {"de", "Steuerschuldnerschaft des Leistungsempfängers",
		"Steuerschuldnerschaft des Leistungsempfängers (Reverse-Charge-Verfahren) gemäß Artikel 196 der Richtlinie 2006/112/EG."},
	"fr": {"fr", "Autoliquidation",
		"Autoliquidation de la TVA par le preneur conformément à l'article 196 de la directive 2006/112/CE."},
	"es": {"es", "Inversión del sujeto pasivo",
		"Inversión del sujeto pasivo conforme al artículo 196 de la Directiva 2006/112/CE."},
	"it": {"it", "Inversione contabile",
		"Inversione contabile ai sensi dell'articolo 196 della direttiva 2006/112/CE."},
	"nl": {"nl", "Btw verlegd",
		"Btw verlegd naar de afnemer overeenkomstig artikel 196 van Richtlijn 2006/112/EG."},
	"pl": {"pl", "Odwrotne obciążenie",
		"Odwrotne obciążenie zgodnie z art. 196 dyrektywy 2006/112/WE."},
	"pt": {"pt", "Autoliquidação",
		"IVA devido pelo adquirente nos termos do artigo 196.º da Diretiva 2006/112/CE."},
	"sv": {"sv", "Omvänd betalningsskyldighet",
		"Omvänd betalningsskyldighet enligt artikel 196 i direktiv 2006/112/EG."},
	"da": {"da", "Omvendt betalingspligt",
		"Omvendt betalingspligt, jf. artikel 196 i direktiv 2006/112/EF."},
	"fi": {"fi", "Käännetty verovelvollisuus",
		"Käännetty verovelvollisuus, direktiivin 2006/112/EY 196 artikla."},
}

// exportNotes carries the zero-rated export wording in the same languages.
var exportNotes = map[string]Note{
	"en": {"en", "VAT exempt export",
		"Exempt from VAT: export of goods outside the European Union under Article 146 of Council Directive 2006/112/EC."},
	"de": {"de", "Steuerfreie Ausfuhrlieferung",
		"Steuerfreie Ausfuhrlieferung gemäß Artikel 146 der Richtlinie 2006/112/EG."},
	"fr": {"fr", "Exportation exonérée de TVA",
		"Exonération de TVA: exportation hors de l'Union européenne conformément à l'article 146 de la directive 2006/112/CE."},
	"es": {"es", "Exportación exenta de IVA",
		"Exenta de IVA: exportación fuera de la Unión Europea conforme al artículo 146 de la Directiva 2006/112/CE."},
	"it": {"it", "Esportazione esente IVA",
		"Operazione esente IVA: esportazione al di fuori dell'Unione europea ai sensi dell'articolo 146 della direttiva 2006/112/CE."},
	"nl": {"nl", "Btw-vrije uitvoer",
		"Vrijgesteld van btw: uitvoer buiten de Europese Unie overeenkomstig artikel 146 van Richtlijn 2006/112/EG."},
	"pl": {"pl", "Eksport zwolniony z VAT",
		"Zwolnione z VAT: eksport poza Unię Europejską zgodnie z art. 146 dyrektywy 2006/112/WE."},
	"pt": {"pt", "Exportação isenta de IVA",
		"Isento de IVA: exportação para fora da União Europeia nos termos do artigo 146.º da Diretiva 2006/112/CE."},
	"sv": {"sv", "Momsfri export",
		"Undantagen från moms: export utanför Europeiska unionen enligt artikel 146 i direktiv 2006/112/EG."},
	"da": {"da", "Momsfri eksport",
		"Fritaget for moms: eksport ud af Den Europæiske Union, jf. artikel 146 i direktiv 2006/112/EF."},
	"fi": {"fi", "Veroton vienti",
		"Arvonlisäveroton vienti Euroopan unionin ulkopuolelle, direktiivin 2006/112/EY 146 artikla."},
}

// NoteFor returns the invoice note for a treatment, or nil when the
// treatment carries no note. Unknown languages fall back to English.
func NoteFor(treatment Treatment, language string) *Note {
	var table map[string]Note
	switch treatment {
	case TreatmentReverseCharge:
		table = reverseChargeNotes
	case TreatmentExport:
		table = exportNotes
	default:
		return nil
	}

	if note, ok := table[language]; ok {
		return &note
	}
	note := table[DefaultLanguage]
	return &note
}

// NoteLanguages lists the languages a treatment's note ships in.
func NoteLanguages(treatment Treatment) []string {
	var table map[string]Note
	switch treatment {
	case TreatmentReverseCharge:
		table = reverseChargeNotes
	case TreatmentExport:
		table = exportNotes
	default:
		return nil
	}
	out := make([]string, 0, len(table))
	for lang := range table {
		out = append(out, lang)
	}
	return out
}
