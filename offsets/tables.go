// offsets/tables.go

package offsets

// Target pairs a module that must be loaded in the process with the
// signatures resolved against it.
type Target struct {
	Module   string
	Registry *Registry
}

var client = MustRegistry("client.dll",
	Sig("dwCSGOInput", "488905${'} 0f57c0 0f1105").
		WithRule(FieldFrom("dwViewAngles", "f2420f108428u4")),
	Sig("dwEntityList", "488935${'} 4885f6"),
	Sig("dwGameEntitySystem", "488b3d${'} 48893d"),
	Sig("dwGameEntitySystem_highestEntityIndex", "ff81u4 4885d2"),
	Sig("dwGameRules", "48891d${'} ff15${} 84c0"),
	Sig("dwGlobalVars", "488915${'} 488942"),
	Sig("dwGlowManager", "488b05${'} c3 cccccccccccccccc 8b41"),
	Sig("dwLocalPlayerController", "488b05${'} 4189be"),
	Sig("dwPlantedC4", "488b15${'} 41ffc0"),
	Sig("dwPrediction", "488d05${'} c3 cccccccccccccccc 405356 4154").
		WithRule(FieldFrom("dwLocalPlayerPawn", "4c39b6u4 74? 4488be")),
	Sig("dwSensitivity", "488d0d${[8]'} 660f6ecd"),
	Sig("dwSensitivity_sensitivity", "488d7eu1 480fbae0? 72? 85d2 490f4fff"),
	Sig("dwViewMatrix", "488d0d${'} 48c1e006"),
	Sig("dwViewRender", "488905${'} 488bc8 4885c0"),
	Sig("dwWeaponC4", "488905${'} f7c1[4] 74? 81e1[4] 890d${} 8b05${} 891d${} eb? 488b15${} 488b5c24? ffc0 8905${} 488bc6 488934ea 80be"),
)

var engine2 = MustRegistry("engine2.dll",
	Sig("dwBuildNumber", "8905${'} 488d0d${} ff15${} 488b0d"),
	Sig("dwNetworkGameClient", "48893d${'} 488d15"),
	Sig("dwNetworkGameClient_clientTickCount", "8b81u4 c3 cccccccccccccccccc 8b81${} c3 cccccccccccccccccc 83b9"),
	Sig("dwNetworkGameClient_deltaTick", "4c8db7u4 4c897c24"),
	Sig("dwNetworkGameClient_isBackgroundMap", "0fb681u4 c3 cccccccccccccccc 0fb681${} c3 cccccccccccccccc 4053"),
	Sig("dwNetworkGameClient_localPlayer", "428b94d3u4 5b 49ffe3 32c0 5b c3 cccccccccccccccc 4053"),
	Sig("dwNetworkGameClient_maxClients", "8b81u4 c3cccccccccccccccccc 8b81${} ffc0"),
	Sig("dwNetworkGameClient_serverTickCount", "8b81u4 c3 cccccccccccccccccc 83b9"),
	Sig("dwNetworkGameClient_signOnState", "448b81u4 488d0d"),
	Sig("dwWindowHeight", "8b05${'} 8903"),
	Sig("dwWindowWidth", "8b05${'} 8907"),
)

var inputSystem = MustRegistry("inputsystem.dll",
	Sig("dwInputSystem", "488905${'} 33c0"),
)

var matchmaking = MustRegistry("matchmaking.dll",
	Sig("dwGameTypes", "488d0d${'} ff90"),
)

var soundSystem = MustRegistry("soundsystem.dll",
	Sig("dwSoundSystem", "488d05${'} c3 cccccccccccccccc 488915"),
	Sig("dwSoundSystem_engineViewData", "0f1147u1 0f104b? 0f118f"),
)

var targets = []Target{
	{Module: client.Module(), Registry: client},
	{Module: engine2.Module(), Registry: engine2},
	{Module: inputSystem.Module(), Registry: inputSystem},
	{Module: matchmaking.Module(), Registry: matchmaking},
	{Module: soundSystem.Module(), Registry: soundSystem},
}

// Targets returns the modules resolved by a default build, in output order.
func Targets() []Target {
	return append([]Target(nil), targets...)
}

// LookupTarget finds a default target by module name.
func LookupTarget(module string) (Target, bool) {
	for _, t := range targets {
		if t.Module == module {
			return t, true
		}
	}
	return Target{}, false
}
