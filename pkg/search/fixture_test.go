package search

type testModel struct {
	Id          string
	StringOne   string
	StringTwo   string
	StringThree *string
	Number      int
	internal    string
}

func strp(s string) *string { return &s }

// fixture trả về dữ liệu mẫu dùng chung cho các test.
func fixture() []*testModel {
	return []*testModel{
		{Id: "1", StringOne: "abcd", StringTwo: "efgh", StringThree: strp("ijkl")},
		{Id: "2", StringOne: "efgh", StringTwo: "ijkl"},
		{Id: "3", StringOne: "ijkl", StringTwo: "mnop", StringThree: strp("qrst")},
		{Id: "4", StringOne: "mnop", StringTwo: "qrst", Number: 4},
		{Id: "5", StringOne: "qrst", StringTwo: "abcd"},
		{Id: "6", StringOne: "cdef", StringTwo: "Case", StringThree: strp("abcdefghij")},
		{Id: "7", StringOne: "", StringTwo: "uvwx"},
	}
}

func f(path string) Accessor[*testModel] { return Field[*testModel](path) }
