package parking

import "fmt"

// DefaultSpaces is the layout of the building: eight spaces on SS and
// thirty-two on S1.
func DefaultSpaces() []NewSpace {
	var spaces []NewSpace
	for _, n := range []int{1, 2, 3, 4, 11, 12, 13, 14} {
		spaces = append(spaces, NewSpace{
			Code:         fmt.Sprintf("SS-%02d", n),
			Floor:        FloorSS,
			IsAccessible: n <= 2,
		})
	}
	for n := 15; n <= 46; n++ {
		spaces = append(spaces, NewSpace{
			Code:         fmt.Sprintf("S1-%02d", n),
			Floor:        FloorS1,
			IsAccessible: n == 15,
		})
	}
	return spaces
}

func DefaultPeople() []Person {
	return []Person{
		{ID: 1, DNI: "12345678", Name: "Juan Pérez", Email: "juan.perez@cibertec.edu.pe"},
		{ID: 2, DNI: "87654321", Name: "María García", Email: "maria.garcia@cibertec.edu.pe"},
		{ID: 3, DNI: "11223344", Name: "Carlos López", Email: "carlos.lopez@cibertec.edu.pe"},
		{ID: 4, DNI: "44332211", Name: "Ana Rodríguez", Email: "ana.rodriguez@cibertec.edu.pe"},
	}
}
