package subject

// Canonical names used across the default table.
const (
	Mathematics          = "Mathematics"
	MathematicalLiteracy = "Mathematical Literacy"
	TechnicalMathematics = "Technical Mathematics"
	EnglishHome          = "English Home Language"
	EnglishFirstAdd      = "English First Additional Language"
	AfrikaansHome        = "Afrikaans Home Language"
	AfrikaansFirstAdd    = "Afrikaans First Additional Language"
	IsiZuluHome          = "isiZulu Home Language"
	IsiZuluFirstAdd      = "isiZulu First Additional Language"
	IsiXhosaHome         = "isiXhosa Home Language"
	IsiXhosaFirstAdd     = "isiXhosa First Additional Language"
	PhysicalSciences     = "Physical Sciences"
	LifeSciences         = "Life Sciences"
	TechnicalSciences    = "Technical Sciences"
	LifeOrientation      = "Life Orientation"
	InformationTech      = "Information Technology"
	ComputerAppsTech     = "Computer Applications Technology"
)

var defaultMappings = []Mapping{
	{
		Canonical: Mathematics,
		Synonyms:  []string{"Maths", "Math", "Pure Mathematics", "Pure Maths", "Core Mathematics", "Core Maths", "Wiskunde"},
		Excludes:  []string{MathematicalLiteracy, TechnicalMathematics},
	},
	{
		Canonical: MathematicalLiteracy,
		Synonyms:  []string{"Maths Literacy", "Math Literacy", "Maths Lit", "Math Lit", "Mathlit", "Wiskundige Geletterdheid"},
		Excludes:  []string{Mathematics, TechnicalMathematics},
	},
	{
		Canonical: TechnicalMathematics,
		Synonyms:  []string{"Technical Maths", "Tech Maths", "Tegniese Wiskunde"},
		Excludes:  []string{Mathematics, MathematicalLiteracy},
	},
	{
		Canonical: EnglishHome,
		Synonyms:  []string{"English HL", "Eng HL", "English (Home Language)", "English First Language", "English 1st Language"},
	},
	{
		Canonical: EnglishFirstAdd,
		Synonyms:  []string{"English FAL", "Eng FAL", "English (First Additional Language)", "English Additional Language", "English Second Language"},
	},
	{
		Canonical: AfrikaansHome,
		Synonyms:  []string{"Afrikaans HL", "Afrikaans Huistaal"},
	},
	{
		Canonical: AfrikaansFirstAdd,
		Synonyms:  []string{"Afrikaans FAL", "Afrikaans Eerste Addisionele Taal", "Afrikaans Second Language"},
	},
	{Canonical: IsiZuluHome, Synonyms: []string{"isiZulu HL", "Zulu Home Language"}},
	{Canonical: IsiZuluFirstAdd, Synonyms: []string{"isiZulu FAL", "Zulu First Additional Language"}},
	{Canonical: IsiXhosaHome, Synonyms: []string{"isiXhosa HL", "Xhosa Home Language"}},
	{Canonical: IsiXhosaFirstAdd, Synonyms: []string{"isiXhosa FAL", "Xhosa First Additional Language"}},
	{
		Canonical: PhysicalSciences,
		Synonyms:  []string{"Physical Science", "Physics", "Physics and Chemistry", "Phys Sci", "Natuur- en Skeikunde"},
		Excludes:  []string{LifeSciences, TechnicalSciences},
	},
	{
		Canonical: LifeSciences,
		Synonyms:  []string{"Life Science", "Biology", "Bio", "Lewenswetenskappe"},
		Excludes:  []string{PhysicalSciences},
	},
	{
		Canonical: TechnicalSciences,
		Synonyms:  []string{"Technical Science", "Tech Sci"},
		Excludes:  []string{PhysicalSciences},
	},
	{Canonical: "Accounting", Synonyms: []string{"Accountancy", "Rekeningkunde"}},
	{Canonical: "Business Studies", Synonyms: []string{"Business", "Business Management", "Besigheidstudies"}},
	{Canonical: "Economics", Synonyms: []string{"Econ", "Ekonomie"}},
	{Canonical: "Geography", Synonyms: []string{"Geo", "Aardrykskunde"}},
	{Canonical: "History", Synonyms: []string{"Geskiedenis"}},
	{Canonical: LifeOrientation, Synonyms: []string{"LO", "Lewensoriëntering"}},
	{
		Canonical: InformationTech,
		Synonyms:  []string{"IT", "Info Tech", "Inligtingstegnologie"},
		Excludes:  []string{ComputerAppsTech},
	},
	{
		Canonical: ComputerAppsTech,
		Synonyms:  []string{"CAT", "Computer Applications", "Rekenaartoepassingstegnologie"},
		Excludes:  []string{InformationTech},
	},
	{Canonical: "Engineering Graphics and Design", Synonyms: []string{"EGD", "Engineering Graphics", "Engineering Drawing"}},
	{Canonical: "Agricultural Sciences", Synonyms: []string{"Agricultural Science", "Agriculture", "Landbouwetenskappe"}},
	{Canonical: "Consumer Studies", Synonyms: []string{"Verbruikerstudies"}},
	{Canonical: "Tourism", Synonyms: []string{"Toerisme"}},
	{Canonical: "Visual Arts", Synonyms: []string{"Art", "Fine Art"}},
	{Canonical: "Dramatic Arts", Synonyms: []string{"Drama"}},
	{Canonical: "Music", Synonyms: []string{"Musiek"}},
}

var defaultFamilies = []Family{
	{Name: "English", Members: []string{EnglishHome, EnglishFirstAdd}},
	{Name: "Afrikaans", Members: []string{AfrikaansHome, AfrikaansFirstAdd}},
	{Name: "isiZulu", Members: []string{IsiZuluHome, IsiZuluFirstAdd}},
	{Name: "isiXhosa", Members: []string{IsiXhosaHome, IsiXhosaFirstAdd}},
}

var defaultTable = MustNewTable(defaultMappings, defaultFamilies)

// DefaultTable returns the built-in National Senior Certificate subject table.
func DefaultTable() *Table { return defaultTable }

// Normalize canonicalizes name against the default table.
func Normalize(name string) string { return defaultTable.Normalize(name) }
