package engine

// Stage is one of the built-in authored levels.
type Stage struct {
	ID       string
	Name     string
	Bonus    bool
	Capacity int
	Rows     []string
}

// Board parses the stage. Built-in stages always parse.
func (s Stage) Board() *Board {
	b, err := NewBoard(s.Capacity, s.Rows)
	if err != nil {
		panic("built-in stage " + s.ID + ": " + err.Error())
	}
	return b
}

// Stages lists the built-in stages in play order: ten regular stages, then two bonus stages.
var Stages = []Stage{
	{
		ID:       "stage-1",
		Name:     "Stage 1",
		Bonus:    false,
		Capacity: 1,
		Rows: []string{
			"#######",
			"### ###",
			"##   ##",
			"#G   L#",
			"##   ##",
			"### ###",
			"#######",
		},
	},
	{
		ID:       "stage-2",
		Name:     "Stage 2",
		Bonus:    false,
		Capacity: 3,
		Rows: []string{
			"#####",
			"#G  #",
			"### #",
			"#R  #",
			"#####",
		},
	},
	{
		ID:       "stage-3",
		Name:     "Stage 3",
		Bonus:    false,
		Capacity: 2,
		Rows: []string{
			"#####",
			"## G#",
			"#R  #",
			"#  ##",
			"#####",
		},
	},
	{
		ID:       "stage-4",
		Name:     "Stage 4",
		Bonus:    false,
		Capacity: 3,
		Rows: []string{
			"######",
			"##G ##",
			"#    #",
			"#    #",
			"## D##",
			"######",
		},
	},
	{
		ID:       "stage-5",
		Name:     "Stage 5",
		Bonus:    false,
		Capacity: 4,
		Rows: []string{
			"#########",
			"#R ###  #",
			"##  #  ##",
			"###   ###",
			"###   ###",
			"##  #  ##",
			"#  ###  #",
			"# #####G#",
			"#########",
		},
	},
	{
		ID:       "stage-6",
		Name:     "Stage 6",
		Bonus:    false,
		Capacity: 5,
		Rows: []string{
			"#########",
			"#       #",
			"#G### ###",
			"#       #",
			"# # #####",
			"#   #R  #",
			"# ### ###",
			"#       #",
			"#########",
		},
	},
	{
		ID:       "stage-7",
		Name:     "Stage 7",
		Bonus:    false,
		Capacity: 5,
		Rows: []string{
			"##############",
			"## # # # # # #",
			"#      #     #",
			"###### ##### #",
			"#  #     #   #",
			"## #     ### #",
			"#D           #",
			"## #     # # #",
			"## #       # #",
			"## # ##### # #",
			"#            #",
			"## ##### ###G#",
			"#      #   # #",
			"##############",
		},
	},
	{
		ID:       "stage-8",
		Name:     "Stage 8",
		Bonus:    false,
		Capacity: 5,
		Rows: []string{
			"###########",
			"# #    G  #",
			"# # ### ###",
			"#   #     #",
			"# ###     #",
			"# #       #",
			"#####     #",
			"#   #     #",
			"# #L### ###",
			"# #       #",
			"###########",
		},
	},
	{
		ID:       "stage-9",
		Name:     "Stage 9",
		Bonus:    false,
		Capacity: 6,
		Rows: []string{
			"##########",
			"#      # #",
			"#  #####G#",
			"#      # #",
			"##     # #",
			"##       #",
			"#R     ###",
			"##       #",
			"#### ### #",
			"##########",
		},
	},
	{
		ID:       "stage-10",
		Name:     "Stage 10",
		Bonus:    false,
		Capacity: 6,
		Rows: []string{
			"##############",
			"####D# # #####",
			"#            #",
			"#### ### #####",
			"#    ###     #",
			"#### ### #####",
			"#            #",
			"#### ### #####",
			"#            #",
			"#### # # #####",
			"#    # #     #",
			"#### # # #####",
			"#    # #    G#",
			"##############",
		},
	},
	{
		ID:       "bonus-1",
		Name:     "Bonus Stage 1",
		Bonus:    true,
		Capacity: 7,
		Rows: []string{
			"#############",
			"#  G        #",
			"# # # ### ###",
			"#           #",
			"# ####### # #",
			"#   #       #",
			"# # #     # #",
			"# #       # #",
			"# # #  U  # #",
			"#         # #",
			"# # ### ### #",
			"# #         #",
			"#############",
		},
	},
	{
		ID:       "bonus-2",
		Name:     "Bonus Stage 2",
		Bonus:    true,
		Capacity: 8,
		Rows: []string{
			"################",
			"#######G########",
			"##### # ########",
			"#####   ########",
			"##### # ########",
			"#         ######",
			"#   # # ########",
			"#           ####",
			"# # # #     ####",
			"#     #     ####",
			"# # ###     ####",
			"# # #       ####",
			"# # ### # ######",
			"#           ####",
			"# # # L## # ####",
			"################",
		},
	},
}

// StageByID looks up a built-in stage.
func StageByID(id string) (Stage, bool) {
	for _, s := range Stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// NextStageID returns the stage played after id: the bonus stages follow the last regular
// stage and play wraps back to the first stage after the last bonus. ok is false for ids that
// are not built in.
func NextStageID(id string) (next string, ok bool) {
	for i, s := range Stages {
		if s.ID == id {
			return Stages[(i+1)%len(Stages)].ID, true
		}
	}
	return "", false
}
