package voices

// DefaultDescriptor is preselected in menus and used when no voice type is given.
const DefaultDescriptor = "Bright"

// DefaultSpeaker2Descriptor is Speaker 2's default, distinct from Speaker 1's
// so the two sides of a dialogue are told apart.
const DefaultSpeaker2Descriptor = "Firm"

// Default is the Gemini prebuilt voice catalog, keyed by voice character.
var Default = mustNew(
	Persona{Descriptor: "Bright", ID: "Zephyr"},
	Persona{Descriptor: "Upbeat", ID: "Puck"},
	Persona{Descriptor: "Informative", ID: "Charon"},
	Persona{Descriptor: "Firm", ID: "Kore"},
	Persona{Descriptor: "Excitable", ID: "Fenrir"},
	Persona{Descriptor: "Youthful", ID: "Leda"},
	Persona{Descriptor: "Breezy", ID: "Aoede"},
	Persona{Descriptor: "Easy-going", ID: "Callirrhoe"},
	Persona{Descriptor: "Breathy", ID: "Enceladus"},
	Persona{Descriptor: "Clear", ID: "Iapetus"},
	Persona{Descriptor: "Smooth", ID: "Algieba"},
	Persona{Descriptor: "Gravelly", ID: "Algenib"},
	Persona{Descriptor: "Soft", ID: "Achernar"},
	Persona{Descriptor: "Even", ID: "Schedar"},
	Persona{Descriptor: "Mature", ID: "Gacrux"},
	Persona{Descriptor: "Forward", ID: "Pulcherrima"},
	Persona{Descriptor: "Friendly", ID: "Achird"},
	Persona{Descriptor: "Casual", ID: "Zubenelgenubi"},
	Persona{Descriptor: "Gentle", ID: "Vindemiatrix"},
	Persona{Descriptor: "Lively", ID: "Sadachbia"},
	Persona{Descriptor: "Knowledgeable", ID: "Sadaltager"},
	Persona{Descriptor: "Warm", ID: "Sulafat"},
)

func mustNew(personas ...Persona) *Catalog {
	c, err := New(personas...)
	if err != nil {
		panic(err)
	}
	return c
}
