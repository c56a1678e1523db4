package storage

import (
	"cvision/internal/storage/models"
	"cvision/internal/types"
	"cvision/internal/utils"
)

// ProfileToModel 将流水线结果转换为数据库行，关系按输出顺序编号
func ProfileToModel(profileID string, result *types.ProfileResult, textMD5, skillStrategy string) *models.Profile {
	p := result.Profile
	if p == nil {
		p = types.NewExtractedProfile("")
	}

	row := &models.Profile{
		ProfileID:             profileID,
		Filename:              p.Filename,
		Name:                  p.Name,
		Locations:             utils.ConvertArrayToJSON(p.Locations),
		EducationInstitutions: utils.ConvertArrayToJSON(p.EducationInstitutions),
		Degrees:               utils.ConvertArrayToJSON(p.Degrees),
		Emails:                utils.ConvertArrayToJSON(p.Emails),
		Phones:                utils.ConvertArrayToJSON(p.Phones),
		Skills:                utils.ConvertArrayToJSON(p.Skills),
		JobTitles:             utils.ConvertArrayToJSON(p.JobTitles),
		LanguagesSpoken:       utils.ConvertArrayToJSON(p.LanguagesSpoken),
		Certifications:        utils.ConvertArrayToJSON(p.Certifications),
		Links:                 utils.ConvertArrayToJSON(p.Links),
		ExperienceYears:       p.ExperienceYears,
		Summary:               p.Summary,
		RawTextMD5:            textMD5,
		SkillStrategy:         skillStrategy,
		RelationshipsCount:    len(result.Relationships),
		Status:                models.ProfileStatusExtracted,
	}

	row.Relationships = make([]models.ProfileRelationship, 0, len(result.Relationships))
	for i, r := range result.Relationships {
		rel := models.ProfileRelationship{
			ProfileID:     profileID,
			Position:      i,
			Type:          string(r.Type),
			Skill:         r.Skill,
			JobTitle:      r.JobTitle,
			Degree:        r.Degree,
			Institution:   r.Institution,
			Certification: r.Certification,
		}
		if r.Location != nil {
			rel.City = r.Location.City
			rel.Country = r.Location.Country
		}
		row.Relationships = append(row.Relationships, rel)
	}
	return row
}

// ModelToProfileResult 数据库行还原为流水线结果
func ModelToProfileResult(row *models.Profile) *types.ProfileResult {
	p := &types.ExtractedProfile{
		Filename:              row.Filename,
		Name:                  row.Name,
		Locations:             utils.JSONToArray(row.Locations),
		EducationInstitutions: utils.JSONToArray(row.EducationInstitutions),
		Degrees:               utils.JSONToArray(row.Degrees),
		Emails:                utils.JSONToArray(row.Emails),
		Phones:                utils.JSONToArray(row.Phones),
		Skills:                utils.JSONToArray(row.Skills),
		JobTitles:             utils.JSONToArray(row.JobTitles),
		LanguagesSpoken:       utils.JSONToArray(row.LanguagesSpoken),
		Certifications:        utils.JSONToArray(row.Certifications),
		Links:                 utils.JSONToArray(row.Links),
		ExperienceYears:       row.ExperienceYears,
		Summary:               row.Summary,
	}

	rels := make([]types.Relationship, 0, len(row.Relationships))
	for _, r := range row.Relationships {
		rel := types.Relationship{
			Type:          types.RelationType(r.Type),
			Skill:         r.Skill,
			JobTitle:      r.JobTitle,
			Degree:        r.Degree,
			Institution:   r.Institution,
			Certification: r.Certification,
		}
		if rel.Type == types.RelationJobInLocation {
			rel.Location = &types.Location{City: r.City, Country: r.Country}
		}
		rels = append(rels, rel)
	}
	return &types.ProfileResult{Profile: p, Relationships: rels}
}
