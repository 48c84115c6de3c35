package config

// defaultServers is the fixed Black Russia server list offered in the server
// menu. Names are matched exactly and case-sensitively.
var defaultServers = [...]string{
	"RED", "GREEN", "BLUE", "YELLOW", "ORANGE", "PURPLE", "LIME", "PINK",
	"CHERRY", "BLACK", "INDIGO", "WHITE", "MAGENTA", "CRIMSON", "GOLD", "AZURE",
	"PLATINUM", "AQUA", "GRAY", "ICE", "CHILLI", "CHOCO", "MOSCOW", "SPB",
	"UFA", "SOCHI", "KAZAN", "SAMARA", "ROSTOV", "ANAPA", "EKB", "KRASNODAR",
	"ARZAMAS", "NOVOSIB", "GROZNY", "SARATOV", "OMSK", "IRKUTSK", "VOLGOGRAD", "VORONEZH",
	"BELGOROD", "MAKHACHKALA", "VLADIKAVKAZ", "VLADIVOSTOK", "KALININGRAD", "CHELYABINSK", "KRASNOYARSK", "CHEBOKSARY",
	"KHABAROVSK", "PERM", "TULA", "RYAZAN", "MURMANSK", "PENZA", "KURSK", "ARKHANGELSK",
	"ORENBURG", "KIROV", "KEMEROVO", "TYUMEN", "TOLYATTI", "IVANOVO", "STAVROPOL", "SMOLENSK",
	"PSKOV", "BRYANSK", "OREL", "YAROSLAVL", "BARNAUL", "LIPETSK", "ULYANOVSK", "YAKUTSK",
	"TAMBOV", "BRATSK", "ASTRAKHAN", "CHITA", "KOSTROMA", "VLADIMIR", "KALUGA", "NOVGOROD",
	"TAGANROG", "VOLOGDA", "TVER", "TOMSK", "IZHEVSK", "SURGUT", "PODOLSK", "MAGADAN",
	"CHEREPOVETS",
}

// DefaultServers returns a fresh copy of the built-in server list.
func DefaultServers() []string {
	out := make([]string, len(defaultServers))
	copy(out, defaultServers[:])
	return out
}
