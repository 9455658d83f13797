package skills

import (
	"tasqsym/registry"
	"tasqsym/skill"
)

// RegisterDefaultLibrary populates skills/decoders with the nine built-in
// skills, under the same name->path pairing as the original
// default_library.py (minus the Python module path): a config's `library`
// section points its `src`/`decoder` fields at these names.
func RegisterDefaultLibrary(skills *registry.Registry[skill.SkillFactory], decoders *registry.Registry[skill.DecoderFactory]) {
	skills.Register("prepare", NewPrepare)
	decoders.Register("prepare_decoder", NewPrepareDecoder)

	skills.Register("navigation", NewNavigation)
	decoders.Register("navigation_decoder", NewNavigationDecoder)

	skills.Register("find", NewFind)
	decoders.Register("find_decoder", NewFindDecoder)

	skills.Register("look", NewLook)
	decoders.Register("look_decoder", NewLookDecoder)

	skills.Register("grasp", NewGrasp)
	decoders.Register("grasp_decoder", NewGraspDecoder)

	skills.Register("pick", NewPick)
	decoders.Register("pick_decoder", NewPickDecoder)

	skills.Register("bring", NewBring)
	decoders.Register("bring_decoder", NewBringDecoder)

	skills.Register("place", NewPlace)
	decoders.Register("place_decoder", NewPlaceDecoder)

	skills.Register("release", NewRelease)
	decoders.Register("release_decoder", NewReleaseDecoder)
}
